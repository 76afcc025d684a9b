/*
Package runner executes protocol documents against a robot session.

A run loads the protocol's labware, modules and instruments into a
runtime.Session, then executes its commands in order through a command
registry. Every step passes an optional CommandInterceptor first, which can
ask an operator for confirmation or block commands outright. The first
failing step stops the run with a *StepError; completed steps are not undone.

# Usage

	sm := runner.NewSignalManager()
	defer sm.Stop()

	r := runner.NewRunner(runner.WithLogger(logger))
	report, err := r.Run(sm.Context(), session, protocol)

Step params are decoded with mapstructure. Wells are referenced as
"<labware id>/<well>", for example "plate/A1".
*/
package runner
