// Package schedule validates and describes Azure Functions timer-trigger schedules.
//
// Two grammars are accepted:
//   - NCRONTAB with seconds: "0 */5 * * * *" (5-field input gets a "0" seconds field)
//   - TimeSpan intervals: "01:30:00", "1.02:00:00", "00:00:30.5"
//
// Anything containing ':' is treated as a TimeSpan; everything else is cron.
// Placeholder references such as "%MyTimerSchedule%" resolve at run time and
// are never evaluated.
//
// The package holds no mutable package-level state: a *Validator is immutable
// after New and can be shared across goroutines.
package schedule
