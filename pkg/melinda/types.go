package melinda

import (
	"encoding/json"
	"fmt"
	"strings"
)

// QueueItemState is the lifecycle state of a bulk job on the backend.
type QueueItemState string

const (
	StateWaitingForRecords QueueItemState = "WAITING_FOR_RECORDS"
	StateUploading         QueueItemState = "UPLOADING"
	StatePendingQueuing    QueueItemState = "PENDING_QUEUING"
	StateQueuingInProgress QueueItemState = "QUEUING_IN_PROGRESS"
	StatePendingValidation QueueItemState = "PENDING_VALIDATION"
	StateValidating        QueueItemState = "VALIDATING"
	StateInQueue           QueueItemState = "IN_QUEUE"
	StateImporting         QueueItemState = "IMPORTING"
	StateInProcess         QueueItemState = "IN_PROCESS"
	StateDone              QueueItemState = "DONE"
	StateError             QueueItemState = "ERROR"
	StateAbort             QueueItemState = "ABORT"
)

// terminalStates lists the states after which no further change is expected.
// The empty state covers a status payload without queueItemState.
var terminalStates = map[QueueItemState]struct{}{
	StateDone:  {},
	StateError: {},
	StateAbort: {},
	"":         {},
}

// Terminal reports whether s ends a bulk job.
func (s QueueItemState) Terminal() bool {
	_, ok := terminalStates[s]
	return ok
}

func (s QueueItemState) String() string { return string(s) }

// ParseQueueItemState normalizes user input into a known state.
func ParseQueueItemState(value string) (QueueItemState, error) {
	state := QueueItemState(strings.ToUpper(strings.TrimSpace(value)))
	switch state {
	case StateWaitingForRecords, StateUploading, StatePendingQueuing, StateQueuingInProgress,
		StatePendingValidation, StateValidating, StateInQueue, StateImporting, StateInProcess,
		StateDone, StateError, StateAbort:
		return state, nil
	}
	return "", fmt.Errorf("unknown queue item state %q", value)
}

// JobStatus is the lightweight answer of GET bulk/state/{correlationId}.
type JobStatus struct {
	CorrelationID    string          `json:"correlationId"`
	QueueItemState   QueueItemState  `json:"queueItemState"`
	ModificationTime string          `json:"modificationTime"`
	Records          json.RawMessage `json:"records,omitempty"`
}

// HandledRecords returns the number of entries in Records, or -1 when the
// backend did not report them.
func (s JobStatus) HandledRecords() int {
	if len(s.Records) == 0 || string(s.Records) == "null" {
		return -1
	}
	var items []json.RawMessage
	if err := json.Unmarshal(s.Records, &items); err != nil {
		return -1
	}
	return len(items)
}

// BulkMetadata is the full bulk job record returned by GET bulk/.
type BulkMetadata struct {
	CorrelationID          string          `json:"correlationId"`
	Cataloger              string          `json:"cataloger,omitempty"`
	Operation              string          `json:"operation,omitempty"`
	OperationSettings      json.RawMessage `json:"operationSettings,omitempty"`
	ContentType            string          `json:"contentType,omitempty"`
	RecordLoadParams       json.RawMessage `json:"recordLoadParams,omitempty"`
	QueueItemState         QueueItemState  `json:"queueItemState"`
	CreationTime           string          `json:"creationTime,omitempty"`
	ModificationTime       string          `json:"modificationTime,omitempty"`
	HandledIDs             []string        `json:"handledIds,omitempty"`
	RejectedIDs            []string        `json:"rejectedIds,omitempty"`
	Records                json.RawMessage `json:"records,omitempty"`
	ErrorMessage           string          `json:"errorMessage,omitempty"`
	ErrorStatus            json.RawMessage `json:"errorStatus,omitempty"`
	NoopValidationMessages []string        `json:"noopValidationMessages,omitempty"`
}

// Subfield is one coded value of a data field.
type Subfield struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

// Field is either a control field (Value set) or a data field (indicators and
// subfields set).
type Field struct {
	Tag       string     `json:"tag"`
	Ind1      string     `json:"ind1,omitempty"`
	Ind2      string     `json:"ind2,omitempty"`
	Value     string     `json:"value,omitempty"`
	Subfields []Subfield `json:"subfields,omitempty"`
}

// ControlField reports whether f carries a bare value.
func (f Field) ControlField() bool { return len(f.Subfields) == 0 && f.Value != "" }

// Record is a MARC record in the JSON shape used by the backend.
type Record struct {
	Leader string  `json:"leader"`
	Fields []Field `json:"fields"`
}

// Get returns the fields whose tag equals tag, in record order.
func (r Record) Get(tag string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// ID returns the value of the 001 control field.
func (r Record) ID() string {
	for _, f := range r.Fields {
		if f.Tag == "001" {
			return f.Value
		}
	}
	return ""
}

// ParseRecord decodes a record from either a JSON object or a JSON string that
// itself contains the object.
func ParseRecord(data []byte) (Record, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return Record{}, fmt.Errorf("decode record string: %w", err)
		}
		trimmed = inner
	}
	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// ReadResult wraps a record read from the backend. Record is only set on 200
// and 201; a 202 or 409 answer leaves it empty and keeps the body in Payload.
type ReadResult struct {
	Record  Record          `json:"record"`
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Conflict reports whether the backend answered 409.
func (r ReadResult) Conflict() bool { return r.Status == 409 }

// BulkResult is the outcome of a bulk submission or state change. Metadata is
// decoded from 200 and 201 answers; a 202 or 409 body is kept raw in Payload.
type BulkResult struct {
	Status   int             `json:"status"`
	Metadata BulkMetadata    `json:"metadata"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Conflict reports whether the backend answered 409.
func (r BulkResult) Conflict() bool { return r.Status == 409 }

// Accepted reports whether the backend answered 202, i.e. took the request
// without returning the job's metadata.
func (r BulkResult) Accepted() bool { return r.Status == 202 }

// RecordResult is the outcome of a create, update or restore. Payload holds
// the raw response body (validation results or a conflict report) when the
// backend sent one.
type RecordResult struct {
	RecordID string          `json:"recordId,omitempty"`
	Status   int             `json:"status"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Conflict reports whether the backend answered 409.
func (r RecordResult) Conflict() bool { return r.Status == 409 }

// LogItem is one entry of the backend's audit log.
type LogItem struct {
	CorrelationID       string          `json:"correlationId"`
	LogItemType         string          `json:"logItemType,omitempty"`
	BlobSequence        int             `json:"blobSequence,omitempty"`
	Cataloger           string          `json:"cataloger,omitempty"`
	StandardIdentifiers []string        `json:"standardIdentifiers,omitempty"`
	DatabaseID          string          `json:"databaseId,omitempty"`
	SourceIDs           []string        `json:"sourceIds,omitempty"`
	CreationTime        string          `json:"creationTime,omitempty"`
	ModificationTime    string          `json:"modificationTime,omitempty"`
	Protected           bool            `json:"protected,omitempty"`
	Log                 json.RawMessage `json:"log,omitempty"`
}
