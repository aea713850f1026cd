package melinda

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// LogClient queries and maintains the backend's audit log.
type LogClient struct {
	exec *executor
}

// NewLogClient builds a LogClient for cfg. Cataloger is ignored.
func NewLogClient(cfg Config, opts ...Option) (*LogClient, error) {
	exec, err := newExecutor(cfg, "log-client", opts)
	if err != nil {
		return nil, err
	}
	return &LogClient{exec: exec}, nil
}

// LogQuery selects log items. Either CorrelationID or ID identifies the log.
type LogQuery struct {
	CorrelationID       string
	ID                  string
	LogItemType         string
	BlobSequence        int
	StandardIdentifiers string
	DatabaseID          string
	SourceIDs           string
	Skip                int
	Limit               int
}

func (q LogQuery) params() *Params {
	return NewParams().
		Add("correlationId", optional(q.CorrelationID)).
		Add("id", optional(q.ID)).
		Add("logItemType", optional(q.LogItemType)).
		Add("blobSequence", optionalInt(q.BlobSequence)).
		Add("standardIdentifiers", optional(q.StandardIdentifiers)).
		Add("databaseId", optional(q.DatabaseID)).
		Add("sourceIds", optional(q.SourceIDs)).
		Add("skip", optionalInt(q.Skip)).
		Add("limit", optionalInt(q.Limit))
}

// LogListQuery filters the log listing. Dates are "YYYY-MM-DD".
type LogListQuery struct {
	LogItemTypes []string
	Catalogers   []string
	DateBefore   string
	DateAfter    string
	Expanded     *bool
}

func (q LogListQuery) params() *Params {
	return NewParams().
		Add("logItemTypes", q.LogItemTypes).
		Add("catalogers", q.Catalogers).
		Add("dateBefore", optional(q.DateBefore)).
		Add("dateAfter", optional(q.DateAfter)).
		Add("expanded", q.Expanded)
}

// GetCatalogers lists the catalogers that have produced logs.
func (c *LogClient) GetCatalogers(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.get(ctx, "logs/catalogers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLog returns the log items matching q.
func (c *LogClient) GetLog(ctx context.Context, q LogQuery) ([]LogItem, error) {
	var out []LogItem
	if err := c.get(ctx, "logs", q.params(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLogsList returns an overview of logs matching q.
func (c *LogClient) GetLogsList(ctx context.Context, q LogListQuery) ([]LogItem, error) {
	var out []LogItem
	if err := c.get(ctx, "logs/list", q.params(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProtectLog toggles the protect flag of a log so that it survives cleanup.
// A zero blobSequence targets every record log of the correlation.
func (c *LogClient) ProtectLog(ctx context.Context, correlationID string, blobSequence int) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodPut, correlationID, NewParams().Add("blobSequence", optionalInt(blobSequence)))
}

// RemoveLog deletes a log. force also removes protected logs.
func (c *LogClient) RemoveLog(ctx context.Context, correlationID string, force bool) (json.RawMessage, error) {
	return c.mutate(ctx, http.MethodDelete, correlationID, NewParams().Add("force", force))
}

func (c *LogClient) get(ctx context.Context, path string, params *Params, dest any) error {
	res, err := c.exec.do(ctx, request{
		method: http.MethodGet,
		path:   path,
		params: params,
		accept: logStatuses,
	})
	if err != nil {
		return err
	}
	if err := c.exec.decode(res, dest); err != nil {
		return err
	}
	c.exec.logger.Debug("log query finished", "path", path, "params", params.Encode())
	return nil
}

func (c *LogClient) mutate(ctx context.Context, method, correlationID string, params *Params) (json.RawMessage, error) {
	if err := requireID("correlation id", correlationID); err != nil {
		return nil, err
	}
	res, err := c.exec.do(ctx, request{
		method: method,
		path:   "logs/" + url.PathEscape(correlationID),
		params: params,
		accept: logStatuses,
	})
	if err != nil {
		return nil, err
	}
	return rawPayload(c.exec, res)
}
