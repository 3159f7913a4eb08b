package govern

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/invar/errors"
	"github.com/teranos/invar/logger"
)

// Collector gathers judgments from registered judges for one decision
// request. All judgments are collected (with a timeout) before aggregation
// begins; a judge that does not respond in time is missing, and missing
// mandatory base judges fail the decision closed unless the config says
// exclude.
type Collector struct {
	registry *Registry
	cfg      *Config
	timeout  time.Duration
	log      *zap.SugaredLogger
}

// NewCollector creates a collector over the registry under one governance
// config.
func NewCollector(registry *Registry, cfg *Config, timeout time.Duration) *Collector {
	return &Collector{
		registry: registry,
		cfg:      cfg,
		timeout:  timeout,
		log:      logger.Named("govern"),
	}
}

type collected struct {
	judgeID  string
	optionID string
	judgment *Judgment
	err      error
}

// Collect runs every registered judge against every option's facts and
// returns the gathered judgments. Judges run concurrently per (judge,
// option) pair; the whole collection shares one timeout, and the wait
// itself is deadline-bounded so a judge that ignores ctx is counted
// missing instead of stalling the decision.
func (c *Collector) Collect(ctx context.Context, facts []EthicalFacts) ([]*Judgment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	judgeIDs := c.registry.List()
	expected := len(judgeIDs) * len(facts)
	// Buffered to capacity: straggler goroutines finishing after the
	// deadline complete their send and exit instead of leaking.
	results := make(chan collected, expected)

	for _, id := range judgeIDs {
		judge, _ := c.registry.Get(id)
		for _, f := range facts {
			go func(judge Judge, f EthicalFacts) {
				j, err := judge.Judge(ctx, f)
				results <- collected{judgeID: judge.ID(), optionID: f.OptionID, judgment: j, err: err}
			}(judge, f)
		}
	}

	responded := make(map[string]map[string]bool) // judge -> option -> ok
	var judgments []*Judgment
gather:
	for received := 0; received < expected; received++ {
		select {
		case res := <-results:
			if res.err != nil {
				c.log.Warnw("judge failed", "judge", res.judgeID, "option", res.optionID, "error", res.err)
				continue
			}
			if responded[res.judgeID] == nil {
				responded[res.judgeID] = make(map[string]bool)
			}
			responded[res.judgeID][res.optionID] = true
			judgments = append(judgments, res.judgment)
		case <-ctx.Done():
			c.log.Warnw("collection deadline reached; unresponsive judges treated as missing",
				"received", received, "expected", expected)
			break gather
		}
	}

	if err := c.checkMissing(facts, responded); err != nil {
		return nil, err
	}

	// Deterministic order for the aggregator's trace.
	sort.Slice(judgments, func(i, j int) bool {
		if judgments[i].OptionID != judgments[j].OptionID {
			return judgments[i].OptionID < judgments[j].OptionID
		}
		return judgments[i].JudgeID < judgments[j].JudgeID
	})
	return judgments, nil
}

func (c *Collector) checkMissing(facts []EthicalFacts, responded map[string]map[string]bool) error {
	for _, base := range c.cfg.BaseJudges {
		for _, f := range facts {
			if responded[base][f.OptionID] {
				continue
			}
			if c.cfg.enforcementMode() == EnforcementFailClosed {
				return errors.Wrapf(errors.ErrMissingJudge, "base judge %s did not respond for option %s", base, f.OptionID)
			}
			c.log.Warnw("base judge missing, excluded per enforcement mode", "judge", base, "option", f.OptionID)
		}
	}
	return nil
}
