// Package fulfiller implements the off-band node that answers broker requests.
//
// A Node subscribes to broker.OracleRequest notifications through an event.Processor,
// looks up the Job registered for the request's spec, computes the response and submits
// it with broker Fulfill under the node's own address. Submissions that fail for transient
// reasons are retried with exponential backoff; ErrUnauthorizedFulfiller and
// ErrUnknownRequest are final.
//
// Jobs can be declared in YAML:
//
//	jobs:
//	  - spec: value
//	    type: uint256
//	    value: "50000"
//	  - spec: receipt
//	    type: text
//	    value: Transaction complete.
//
//	jobs, err := fulfiller.LoadJobs("jobs.yaml")
//	node, err := fulfiller.NewNode(nodeAddr, oracle, fulfiller.WithJobs(jobs))
//	proc := event.NewProcessor(event.WithEventSource(bus), event.WithHandler(node.Handler()))
package fulfiller
