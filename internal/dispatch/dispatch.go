package dispatch

import (
	"context"

	"github.com/guiyumin/streamdl/internal/core/config"
	"github.com/sirupsen/logrus"
)

// Dispatcher runs classify, resolve and open for one request.
type Dispatcher struct {
	cfg       *config.Config
	resolver  *Resolver
	pipeline  *Pipeline
	indexPath string
	log       *logrus.Entry
}

// New returns a Dispatcher. Missing urls are redirected to indexPath.
func New(lib Library, cfg *config.Config, indexPath string) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		resolver:  NewResolver(lib, cfg),
		pipeline:  NewPipeline(lib, cfg.Remux),
		indexPath: indexPath,
		log:       logrus.WithField("component", "dispatch"),
	}
}

// Dispatch answers req. A returned OutcomeStream handle must be closed by the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, req MediaRequest) Outcome {
	if req.URL == "" {
		return Outcome{Kind: OutcomeRedirect, Location: d.indexPath}
	}

	strategy := Classify(req, d.cfg.Convert)
	log := d.log.WithFields(logrus.Fields{"url": req.URL, "strategy": strategy.String()})

	out := d.attempt(ctx, req, strategy)
	if out.Kind == OutcomeRedirect && out.Location == "" {
		out.Location = d.indexPath
	}

	entry := log.WithField("outcome", out.Kind.String())
	if out.Err != nil {
		entry = entry.WithError(out.Err)
	}
	entry.Info("download dispatched")
	return out
}

func (d *Dispatcher) attempt(ctx context.Context, req MediaRequest, strategy Strategy) Outcome {
	plan, err := d.resolver.Resolve(ctx, req, strategy)
	if err != nil {
		return Translate(err)
	}
	if plan.Kind == PlanRedirect {
		return Outcome{Kind: OutcomeRedirect, Location: plan.Location}
	}

	handle, err := d.pipeline.Open(ctx, plan, req.WithBody)
	if err != nil {
		return Translate(err)
	}
	return Outcome{Kind: OutcomeStream, Stream: handle}
}
