package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"famtree/internal/config"
	"famtree/internal/family"
	"famtree/internal/logging"
	"famtree/internal/logic"
	"famtree/internal/mangle"
	"famtree/internal/types"
)

// queryEngine is what the commands need from a backend.
type queryEngine interface {
	types.Engine
	types.Describer
}

// bootEngine builds the configured engine and loads the family tree into it.
func bootEngine(ctx context.Context) (queryEngine, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "boot engine")
	defer timer.Stop()

	var engine queryEngine
	switch cfg.Engine {
	case config.EngineMangle:
		engine = mangle.NewEngine(mangle.Config{
			FactLimit:    cfg.Mangle.FactLimit,
			QueryTimeout: int(cfg.GetQueryTimeout().Seconds()),
		})
	case config.EngineNative:
		engine = logic.NewEngine(logic.Config{MaxDepth: cfg.Evaluator.MaxDepth})
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}

	var parents []types.Fact
	if cfg.FactsFile != "" {
		var err error
		parents, err = family.LoadFactFile(cfg.FactsFile)
		if err != nil {
			return nil, err
		}
		logging.Boot("Loaded %d parent facts from %s", len(parents), cfg.FactsFile)
	}
	if err := family.Load(engine, parents); err != nil {
		return nil, fmt.Errorf("loading family tree: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger.Debug("Engine ready", zap.String("engine", cfg.Engine), zap.Int("relations", len(engine.Relations())))
	return engine, nil
}

// guard runs fn and, on failure or panic, logs the operation, elapsed time
// and stack before handing the error back.
func guard(op string, fn func() error) (err error) {
	timer := logging.StartTimer(logging.CategoryBoot, op)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
			critical(op, timer.Elapsed(), err, string(debug.Stack()))
		}
	}()

	logger.Debug("Starting", zap.String("op", op))
	if err = fn(); err != nil {
		critical(op, timer.Elapsed(), err, string(debug.Stack()))
		return err
	}
	logger.Debug("Finished", zap.String("op", op), zap.Duration("elapsed", timer.Stop()))
	return nil
}

func critical(op string, elapsed time.Duration, err error, stack string) {
	logger.Error("Operation failed",
		zap.String("op", op),
		zap.Duration("elapsed", elapsed),
		zap.Error(err),
		zap.String("stack", stack))
	logging.BootError("%s failed after %v: %v\n%s", op, elapsed, err, stack)
	logging.AuditWithSession("").Critical(op, err)
}
