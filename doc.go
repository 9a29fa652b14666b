// Package conveyor builds strictly linear activity pipelines and drives
// them to completion against a remote workflow orchestration service.
//
// A pipeline is an ordered sequence of stages, each scheduling one
// activity. Conveyor derives "what happens next" purely by replaying the
// execution's event history, so deciders carry no state of their own and
// redelivered decision tasks are harmless.
//
// # Quick Start
//
//	validate := conveyor.NewActivity("Validate", validateTask)
//	charge := conveyor.NewActivity("Charge", chargeTask)
//
//	def, err := conveyor.NewPipeline("orders", "Order")
//	if err != nil { ... }
//	def = def.Attach(validate).Attach(charge)
//
//	sup, err := worker.New(svc, def)
//	if err != nil { ... }
//	err = sup.Start(ctx)
//
// # Architecture
//
// Conveyor is a library, not a service. The decide package replays event
// histories, the registrar package reconciles type catalogues, the
// poller package runs the long-lived task loops, and the worker package
// supervises them. The orchestration service itself is reached through
// the narrow interfaces in the client package; the local package ships
// an in-process implementation for development and tests.
package conveyor
