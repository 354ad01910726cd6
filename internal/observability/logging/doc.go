// Package logging builds the worker's slog logger and carries it, with the
// current poll cycle ID, through context.
//
// LOG_LEVEL and LOG_FORMAT pick the level and handler. A cycle is logged as:
//
//	ctx = logging.ContextWithCycleID(ctx, cycleID)
//	ctx = logging.WithLogger(ctx, logging.WithCycleID(ctx, logger))
//	logging.FromContext(ctx).Info("cycle started")
package logging
