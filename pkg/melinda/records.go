package melinda

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// RecordClient reads and writes single records and manages bulk jobs.
type RecordClient struct {
	exec      *executor
	cataloger string
}

// NewRecordClient builds a RecordClient for cfg.
func NewRecordClient(cfg Config, opts ...Option) (*RecordClient, error) {
	exec, err := newExecutor(cfg, "record-client", opts)
	if err != nil {
		return nil, err
	}
	return &RecordClient{exec: exec, cataloger: strings.TrimSpace(cfg.Cataloger)}, nil
}

// CreateOptions are the query flags of a record create.
type CreateOptions struct {
	Noop              bool
	Unique            bool
	Merge             bool
	Cataloger         string // overrides the client's cataloger
	SkipLowValidation bool
}

func (o CreateOptions) params() *Params {
	p := NewParams().
		Add("noop", o.Noop).
		Add("unique", o.Unique).
		Add("merge", o.Merge).
		Add("cataloger", optional(o.Cataloger))
	if o.SkipLowValidation {
		p.Add("skipLowValidation", true)
	}
	return p
}

// UpdateOptions are the query flags of a record update or restore.
type UpdateOptions struct {
	Noop              bool
	Cataloger         string
	SkipLowValidation bool
}

func (o UpdateOptions) params() *Params {
	p := NewParams().
		Add("noop", o.Noop).
		Add("cataloger", optional(o.Cataloger))
	if o.SkipLowValidation {
		p.Add("skipLowValidation", true)
	}
	return p
}

// prioDefaults is built per call so that no request can leak into another.
func (c *RecordClient) prioDefaults() *Params {
	return NewParams().Add("cataloger", optional(c.cataloger))
}

func (c *RecordClient) bulkDefaults() *Params {
	return NewParams().Add("pCatalogerIn", optional(c.cataloger))
}

// Read fetches the record with the given Melinda id.
func (c *RecordClient) Read(ctx context.Context, recordID string) (ReadResult, error) {
	if err := requireID("record", recordID); err != nil {
		return ReadResult{}, err
	}
	c.exec.logger.Debug("GET record", "id", recordID)
	res, err := c.exec.do(ctx, request{
		method: http.MethodGet,
		path:   url.PathEscape(recordID),
		accept: recordStatuses,
	})
	if err != nil {
		return ReadResult{}, err
	}
	out := ReadResult{Status: res.status}
	if !res.hasDocument() {
		payload, err := rawPayload(c.exec, res)
		if err != nil {
			return ReadResult{}, err
		}
		c.exec.logger.Debug("record read answered without a record", "status", res.status)
		out.Payload = payload
		return out, nil
	}
	rec, err := ParseRecord(res.body)
	if err != nil {
		c.exec.logger.Debug("parsing record failed", "error", err)
		return ReadResult{}, internalError(err)
	}
	out.Record = rec
	return out, nil
}

// Create sends a new record to be saved.
func (c *RecordClient) Create(ctx context.Context, rec Record, opts CreateOptions) (RecordResult, error) {
	c.exec.logger.Debug("POST create prio")
	return c.writeRecord(ctx, "", rec, c.prioDefaults().Merge(opts.params()))
}

// Update replaces the record recordID.
func (c *RecordClient) Update(ctx context.Context, rec Record, recordID string, opts UpdateOptions) (RecordResult, error) {
	if err := requireID("record", recordID); err != nil {
		return RecordResult{}, err
	}
	c.exec.logger.Debug("POST update prio", "id", recordID)
	return c.writeRecord(ctx, url.PathEscape(recordID), rec, c.prioDefaults().Merge(opts.params()))
}

// Restore posts rec as a fix for a previously deleted or damaged record.
func (c *RecordClient) Restore(ctx context.Context, rec Record, recordID string, opts UpdateOptions) (RecordResult, error) {
	if err := requireID("record", recordID); err != nil {
		return RecordResult{}, err
	}
	c.exec.logger.Debug("POST fix prio", "id", recordID)
	return c.writeRecord(ctx, "fix/"+url.PathEscape(recordID), rec, c.prioDefaults().Merge(opts.params()))
}

func (c *RecordClient) writeRecord(ctx context.Context, path string, rec Record, params *Params) (RecordResult, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return RecordResult{}, internalError(fmt.Errorf("encode record: %w", err))
	}
	res, err := c.exec.do(ctx, request{
		method: http.MethodPost,
		path:   path,
		params: params,
		body:   bytes.NewReader(body),
		accept: recordStatuses,
	})
	if err != nil {
		return RecordResult{}, err
	}
	return c.recordResult(res)
}

func (c *RecordClient) recordResult(res *response) (RecordResult, error) {
	out := RecordResult{
		RecordID: res.header.Get("Record-ID"),
		Status:   res.status,
	}
	if len(bytes.TrimSpace(res.body)) == 0 {
		return out, nil
	}
	if !json.Valid(res.body) {
		return RecordResult{}, internalError(fmt.Errorf("decode response: invalid JSON body"))
	}
	out.Payload = json.RawMessage(res.body)
	if out.RecordID == "" {
		var ids struct {
			RecordID   string `json:"recordId"`
			DatabaseID string `json:"databaseId"`
		}
		if json.Unmarshal(res.body, &ids) == nil {
			out.RecordID = ids.RecordID
			if out.RecordID == "" {
				out.RecordID = ids.DatabaseID
			}
		}
	}
	c.exec.logger.Debug("record operation finished", "status", out.Status, "recordId", out.RecordID)
	return out, nil
}
