// Package scan finds timer-trigger schedule strings in Azure Functions
// projects and checks them with the schedule validator.
//
// Recognized sources:
//   - C# and .csx: [TimerTrigger("...")], including verbatim @"..." strings
//   - F#: [<TimerTrigger("...")>], including triple-quoted strings
//   - function.json: bindings with "type": "timerTrigger"
//
// Only string literals are reported. Schedules built from constants or
// expressions are skipped.
package scan
