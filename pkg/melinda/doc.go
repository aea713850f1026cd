// Package melinda provides an HTTP client for the Melinda REST API.
//
// # Overview
//
// Melinda is a union catalogue backend. This package wraps its REST surface:
// single record reads and writes ("prio" operations), bulk job submission and
// state handling, and the audit log. Responses are decoded into a small set
// of types and every failure is reported as an *APIError.
//
// # Clients
//
// Two clients share one request executor implementation:
//
//   - RecordClient: Read, Create, Update, Restore and the bulk operations
//     (CreateBulk, CreateBulkNoStream, SetBulkStatus, SendRecordToBulk,
//     ReadBulk, GetBulkState)
//   - LogClient: GetCatalogers, GetLog, GetLogsList, ProtectLog, RemoveLog
//
// Both are built from a Config:
//
//	client, err := melinda.NewRecordClient(melinda.Config{
//		BaseURL:   "https://melinda.example/api/",
//		Username:  "user",
//		Password:  "secret",
//		Cataloger: "LOAD",
//	})
//	if err != nil {
//		log.Fatalf("init client: %v", err)
//	}
//	res, err := client.Read(ctx, "017000000")
//
// The Basic credential is computed once in the constructor. Clients are
// immutable afterwards and safe for concurrent use.
//
// # Request Handling
//
// Every request carries User-Agent, Content-Type (application/json unless the
// operation streams another format), Authorization and Accept:
// application/json. Query parameters keep the order in which they were added
// and absent values are left out instead of being sent empty.
//
// When a cataloger is configured it is sent as "cataloger" on prio
// operations and as "pCatalogerIn" on bulk submissions; values set in the
// per-call options win.
//
// # Error Handling
//
// Statuses are handled in two passes. First 400, 401, 403, 404 and 503 are
// turned into descriptive errors (400 carries the backend's message and
// failed parameters, 503 a fixed "try again later" text). Then record
// operations accept 200, 201, 202 and 409, log operations only 200; any other
// status becomes an *APIError with that code. Only 200 and 201 are decoded
// into records or bulk metadata. For 202 and 409 the results (RecordResult,
// ReadResult, BulkResult) carry the status and the raw body in Payload, and
// Conflict reports the 409 case. Bulk state and listing reads accept only 200
// and 201.
//
// Operations that address a single record, job or log return ErrMissingID for
// an empty id without sending anything.
//
// WithTimeout bounds every request except the upload of a CreateBulk stream,
// which may take as long as the stream needs; there the timeout only limits
// the wait for the response headers.
//
// Transport, read and decode failures are reported as an *APIError with
// status 500 and the message "Unexpected internal error". The cause stays
// reachable through errors.Unwrap and APIError.Transport reports true.
//
// # Polling
//
// Poller follows a bulk job until it reaches DONE, ERROR, ABORT or a status
// without state, then returns the job's full metadata. Checks that see no
// change in the job's modification time are spaced by the poll interval
// (default 3s). Transport failures are retried with a backoff capped at 30s.
// Backend answers 500, 403 and 415 stop the poll with ErrPollAborted.
//
//	meta, err := melinda.NewPoller(client, correlationID,
//		melinda.WithInterval(5*time.Second),
//	).Poll(ctx)
//
// The poll has no deadline of its own; bound it with the context.
package melinda
