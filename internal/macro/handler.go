package macro

import (
	"context"
	"log/slog"

	"github.com/uplg/remapd/internal/eventmodel"
)

// Handler adapts a compiled Macro to eventmodel.Handler so a Recognizer (or
// a direct mapping dispatch) can drive it the same way it drives a plain
// key-emitting sub-handler. A macro always absorbs the events that reach it:
// the trigger key is never meant to reach the target uinput directly, only
// whatever the macro program itself emits.
type Handler struct {
	macro  *Macro
	emit   EmitFunc
	env    *Env
	logger *slog.Logger
}

// NewHandler builds a Handler wrapping macro, driving output through emit
// and resolving symbols/variables/LEDs through env.
func NewHandler(macro *Macro, emit EmitFunc, env *Env, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{macro: macro, emit: emit, env: env, logger: logger}
}

// Notify implements eventmodel.Handler. A press starts the macro's program
// in its own goroutine (a no-op if one is already running, per spec §4.3);
// a release signals any suspended hold()/if_tap()/if_single() task.
func (h *Handler) Notify(event eventmodel.InputEvent, suppress bool) (bool, error) {
	if event.Value != 0 {
		h.macro.PressTrigger()
		if !h.macro.IsRunning() {
			go func() {
				if err := h.macro.Run(context.Background(), h.emit, h.env); err != nil {
					h.logger.Error("macro run finished with error", "error", err)
				}
			}()
		}
		return true, nil
	}
	h.macro.ReleaseTrigger()
	return true, nil
}

// Reset implements eventmodel.Handler: cancels any in-flight run.
func (h *Handler) Reset() {
	h.macro.Cancel()
}
