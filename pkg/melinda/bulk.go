package melinda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// BulkOptions are the query flags of a bulk job submission. String options
// left empty and nil flags are not sent.
type BulkOptions struct {
	OldNew              string // "NEW" creates records, "OLD" updates them
	ActiveLibrary       string
	CatalogerIn         string // overrides the client's cataloger
	RejectFile          string
	LogFile             string
	Noop                *bool
	Unique              *bool
	Merge               *bool
	Validate            *bool
	FailOnError         *bool
	SkipNoChangeUpdates *bool
}

func (o BulkOptions) params() *Params {
	return NewParams().
		Add("pOldNew", optional(o.OldNew)).
		Add("pActiveLibrary", optional(o.ActiveLibrary)).
		Add("pCatalogerIn", optional(o.CatalogerIn)).
		Add("pRejectFile", optional(o.RejectFile)).
		Add("pLogFile", optional(o.LogFile)).
		Add("noop", o.Noop).
		Add("unique", o.Unique).
		Add("merge", o.Merge).
		Add("validate", o.Validate).
		Add("failOnError", o.FailOnError).
		Add("skipNoChangeUpdates", o.SkipNoChangeUpdates)
}

// BulkQuery filters the bulk job listing. CreationTime and ModificationTime
// take one date ("YYYY-MM-DD") or a [before, after] pair.
type BulkQuery struct {
	CorrelationID    string
	QueueItemState   QueueItemState
	CreationTime     []string
	ModificationTime []string
	Skip             int
	Limit            int
}

func (q BulkQuery) params() *Params {
	return NewParams().
		Add("correlationId", optional(q.CorrelationID)).
		Add("queueItemState", optional(string(q.QueueItemState))).
		Add("creationTime", q.CreationTime).
		Add("modificationTime", q.ModificationTime).
		Add("skip", optionalInt(q.Skip)).
		Add("limit", optionalInt(q.Limit))
}

// CreateBulk uploads a stream of records of the given content type as a new
// bulk job. The upload is not bounded by the client timeout.
func (c *RecordClient) CreateBulk(ctx context.Context, stream io.Reader, contentType string, opts BulkOptions) (BulkResult, error) {
	c.exec.logger.Debug("POST bulk stream", "contentType", contentType)
	return c.submitBulk(ctx, request{
		method:      http.MethodPost,
		path:        "bulk/",
		params:      c.bulkDefaults().Merge(opts.params()),
		body:        stream,
		contentType: contentType,
		accept:      recordStatuses,
		stream:      true,
	})
}

// CreateBulkNoStream creates an empty bulk job waiting for records to be sent
// one by one with SendRecordToBulk.
func (c *RecordClient) CreateBulkNoStream(ctx context.Context, contentType string, opts BulkOptions) (BulkResult, error) {
	c.exec.logger.Debug("POST bulk no stream", "contentType", contentType)
	params := c.bulkDefaults().Merge(opts.params()).Add("noStream", 1)
	return c.submitBulk(ctx, request{
		method:      http.MethodPost,
		path:        "bulk/",
		params:      params,
		contentType: contentType,
		accept:      recordStatuses,
	})
}

func (c *RecordClient) submitBulk(ctx context.Context, req request) (BulkResult, error) {
	res, err := c.exec.do(ctx, req)
	if err != nil {
		return BulkResult{}, err
	}
	if !res.hasDocument() {
		return c.rawBulkResult(res)
	}
	var wrapped struct {
		Value *BulkMetadata `json:"value"`
	}
	if err := c.exec.decode(res, &wrapped); err != nil {
		return BulkResult{}, err
	}
	out := BulkResult{Status: res.status}
	if wrapped.Value != nil {
		out.Metadata = *wrapped.Value
		return out, nil
	}
	if err := c.exec.decode(res, &out.Metadata); err != nil {
		return BulkResult{}, err
	}
	return out, nil
}

func (c *RecordClient) rawBulkResult(res *response) (BulkResult, error) {
	payload, err := rawPayload(c.exec, res)
	if err != nil {
		return BulkResult{}, err
	}
	c.exec.logger.Debug("bulk request answered without metadata", "status", res.status)
	return BulkResult{Status: res.status, Payload: payload}, nil
}

// SetBulkStatus moves a bulk job to state, typically PENDING_VALIDATION, DONE
// or ABORT.
func (c *RecordClient) SetBulkStatus(ctx context.Context, correlationID string, state QueueItemState) (BulkResult, error) {
	if err := requireID("correlation id", correlationID); err != nil {
		return BulkResult{}, err
	}
	c.exec.logger.Debug("PUT bulk status", "correlationId", correlationID, "state", state)
	res, err := c.exec.do(ctx, request{
		method: http.MethodPut,
		path:   "bulk/state/" + url.PathEscape(correlationID),
		params: NewParams().Add("status", optional(string(state))),
		accept: recordStatuses,
	})
	if err != nil {
		return BulkResult{}, err
	}
	if !res.hasDocument() {
		return c.rawBulkResult(res)
	}
	out := BulkResult{Status: res.status}
	if err := c.exec.decode(res, &out.Metadata); err != nil {
		return BulkResult{}, err
	}
	return out, nil
}

// SendRecordToBulk adds one record to a job created with CreateBulkNoStream.
func (c *RecordClient) SendRecordToBulk(ctx context.Context, rec Record, correlationID, contentType string) (json.RawMessage, error) {
	if err := requireID("correlation id", correlationID); err != nil {
		return nil, err
	}
	c.exec.logger.Debug("POST record to bulk", "correlationId", correlationID)
	body, err := json.Marshal(rec)
	if err != nil {
		return nil, internalError(fmt.Errorf("encode record: %w", err))
	}
	res, err := c.exec.do(ctx, request{
		method:      http.MethodPost,
		path:        "bulk/record/" + url.PathEscape(correlationID),
		body:        bytes.NewReader(body),
		contentType: contentType,
		accept:      recordStatuses,
	})
	if err != nil {
		return nil, err
	}
	return rawPayload(c.exec, res)
}

// ReadBulk lists bulk jobs matching q. Only 200 and 201 carry a listing; any
// other answer is an *APIError.
func (c *RecordClient) ReadBulk(ctx context.Context, q BulkQuery) ([]BulkMetadata, error) {
	c.exec.logger.Debug("GET bulk metadata", "correlationId", q.CorrelationID)
	res, err := c.exec.do(ctx, request{
		method: http.MethodGet,
		path:   "bulk/",
		params: q.params(),
		accept: documentStatuses,
	})
	if err != nil {
		return nil, err
	}
	var items []BulkMetadata
	if err := c.exec.decode(res, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// GetBulkState fetches only the state of a bulk job. Like ReadBulk it accepts
// only 200 and 201.
func (c *RecordClient) GetBulkState(ctx context.Context, correlationID string) (JobStatus, error) {
	if err := requireID("correlation id", correlationID); err != nil {
		return JobStatus{}, err
	}
	c.exec.logger.Debug("GET bulk state", "correlationId", correlationID)
	res, err := c.exec.do(ctx, request{
		method: http.MethodGet,
		path:   "bulk/state/" + url.PathEscape(correlationID),
		accept: documentStatuses,
	})
	if err != nil {
		return JobStatus{}, err
	}
	var status JobStatus
	if err := c.exec.decode(res, &status); err != nil {
		return JobStatus{}, err
	}
	return status, nil
}

func rawPayload(exec *executor, res *response) (json.RawMessage, error) {
	if len(bytes.TrimSpace(res.body)) == 0 {
		return nil, nil
	}
	if !json.Valid(res.body) {
		exec.logger.Debug("response is not JSON", "body", truncate(res.body, 512))
		return nil, internalError(fmt.Errorf("decode response: invalid JSON body"))
	}
	return json.RawMessage(res.body), nil
}
