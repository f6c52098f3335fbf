package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	tfotel "github.com/Strob0t/TripForge/internal/adapter/otel"
	"github.com/Strob0t/TripForge/internal/domain/trip"
	"github.com/Strob0t/TripForge/internal/service"
)

// planOptions are the flags of the plan command.
type planOptions struct {
	req    trip.Request
	stream bool
	json   bool
}

func parsePlanFlags(args []string, stdoutIsTTY bool) (planOptions, error) {
	var o planOptions
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.StringVar(&o.req.Destination, "destination", "", "city or region to visit (required)")
	fs.StringVar(&o.req.Duration, "duration", "", "trip length, e.g. \"5 days\" (required)")
	fs.StringVar(&o.req.Budget, "budget", "", "budget, e.g. \"$2000\" (required)")
	fs.StringVar(&o.req.Interests, "interests", "", "comma-separated interests (required)")
	fs.StringVar(&o.req.TravelStyle, "style", "", "travel style (default standard)")
	fs.StringVar(&o.req.UserInput, "notes", "", "free-form notes for the planner")
	fs.BoolVar(&o.stream, "stream", stdoutIsTTY, "print the itinerary as it is generated")
	fs.BoolVar(&o.json, "json", false, "print the full plan as JSON (implies --stream=false)")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if o.json {
		o.stream = false
	}
	if err := o.req.Validate(); err != nil {
		return o, err
	}
	return o, nil
}

func runPlan(args []string) error {
	opts, err := parsePlanFlags(args, term.IsTerminal(int(os.Stdout.Fd()))) //nolint:gosec // fd fits in int
	if err != nil {
		return err
	}

	cfg, logCloser, err := loadConfig()
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx := context.Background()
	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, span := tfotel.StartPlanSpan(ctx, opts.req.Destination, opts.stream)
	defer span.End()

	if opts.stream {
		return streamPlan(ctx, a.orchestrator, opts.req, os.Stdout, func(id string) { tfotel.SetPlanID(span, id) })
	}

	it, err := a.orchestrator.Plan(ctx, opts.req)
	if err != nil {
		return errors.New(service.ErrorMessage(err))
	}
	tfotel.SetPlanID(span, it.ID)
	return printItinerary(os.Stdout, it, opts.json)
}

// streamPlan writes chunks to w as they arrive. A terminal error chunk is
// returned as an error after the partial text.
func streamPlan(ctx context.Context, o *service.Orchestrator, req trip.Request, w io.Writer, onID func(string)) error {
	stream, err := o.PlanStream(ctx, req)
	if err != nil {
		return errors.New(service.ErrorMessage(err))
	}
	if onID != nil {
		onID(stream.ID())
	}
	var failure string
	err = service.Deliver(ctx, stream, func(c trip.Chunk) error {
		if c.IsError() {
			failure = c.Err
			return nil
		}
		_, werr := io.WriteString(w, c.Text)
		return werr
	})
	_, _ = fmt.Fprintln(w)
	if failure != "" {
		return errors.New(failure)
	}
	return err
}

func printItinerary(w io.Writer, it *trip.Itinerary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(it)
	}
	if it.Degraded {
		_, _ = fmt.Fprintln(w, "(offline draft: no LLM provider configured)")
	}
	_, err := fmt.Fprintln(w, it.Text)
	return err
}
