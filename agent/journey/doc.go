// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package journey runs the browse-act-observe loop of a mystery-shopper journey.

# State machine

A Controller moves each run through Idle → Loading → Stepping* → Finished or
Aborted. Loading failure aborts with no steps. Every step waits for the page to
settle, captures a screenshot, asks the Oracle for a Decision and a UXAnalysis
against that same screenshot, appends a StepRecord and dispatches the action.

# Failure policy

Oracle errors are replaced by oracle.DegradedDecision and
oracle.DegradedAnalysis at the call site. Screenshot failures skip the step.
Click and scroll failures are warnings. A panic inside a step is recovered at
the step boundary. A skipped or failed step still consumes its slot, so
StepRecord.Step may have gaps but never exceeds MaxSteps.

# Suspension points

All timed waits go through an injected clock.Sleeper with the durations in
Delays, which lets tests run the loop without real sleeping. Cancellation of
the run context is observed at those waits and between steps.
*/
package journey
