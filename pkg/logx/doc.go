// Package logx configures gradewatch's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Sinks/levels swappable at runtime via Service.Apply (config reload)
package logx
