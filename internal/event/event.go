package event

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Kind discriminates the container union.
type Kind int

const (
	// KindExperiment targets an evaluation experiment.
	KindExperiment Kind = iota
	// KindProjectLogs targets a project's log stream.
	KindProjectLogs
)

// DefaultLogID is the log stream used when a project container does not name
// one explicitly.
const DefaultLogID = "g"

// Container is the tagged union naming the logical destination of a row:
// an experiment, or a project's log stream.
type Container struct {
	Kind         Kind
	ExperimentID string
	ProjectID    string
	LogID        string
}

// Experiment returns a container targeting an experiment.
func Experiment(id string) Container {
	return Container{Kind: KindExperiment, ExperimentID: id}
}

// ProjectLogs returns a container targeting a project's log stream.
func ProjectLogs(projectID string) Container {
	return Container{Kind: KindProjectLogs, ProjectID: projectID, LogID: DefaultLogID}
}

// ID returns the container's primary identifier.
func (c Container) ID() string {
	switch c.Kind {
	case KindExperiment:
		return c.ExperimentID
	case KindProjectLogs:
		return c.ProjectID
	default:
		panic(fmt.Sprintf("event: unknown container kind %d", c.Kind))
	}
}

// Key returns the identity prefix rows in this container group under.
func (c Container) Key() string {
	switch c.Kind {
	case KindExperiment:
		return "experiment:" + c.ExperimentID
	case KindProjectLogs:
		return "project_logs:" + c.ProjectID + ":" + c.LogID
	default:
		panic(fmt.Sprintf("event: unknown container kind %d", c.Kind))
	}
}

// Event is the unit the pipeline transports: one full or partial update to a
// logical row.
type Event struct {
	Container Container
	// ID is the row id, unique within the container.
	ID string
	// IsMerge marks this event as a partial update to be combined with
	// peers sharing identity rather than replacing them.
	IsMerge bool
	// Data holds the row fields: input/output/metadata/metrics/scores plus
	// the lineage fields.
	Data map[string]any
}

// identity returns the grouping key for the merge engine.
func (e Event) identity() string {
	return e.Container.Key() + "\x00" + e.ID
}

// lineageFields are structural row fields that survive wholesale payload
// replacement and merge last-writer-wins per field.
var lineageFields = [...]string{"created", "span_id", "root_span_id", "_parent_id", "span_parents"}

// IsLineageField reports whether a row key is structural lineage rather than
// payload.
func IsLineageField(key string) bool {
	for _, f := range lineageFields {
		if key == f {
			return true
		}
	}
	return false
}

// ErrInvalidMetadata rejects malformed metadata at event construction, before
// anything reaches the queue or the merge engine.
var ErrInvalidMetadata = errors.New("metadata must be a JSON object with string keys")

// ValidateMetadata checks that a metadata value is an object keyed by
// strings. nil metadata is allowed.
func ValidateMetadata(meta any) error {
	if meta == nil {
		return nil
	}
	v := reflect.ValueOf(meta)
	if v.Kind() != reflect.Map || v.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: got %T", ErrInvalidMetadata, meta)
	}
	return nil
}

// Row materializes the outgoing wire object for this event: the payload plus
// identity fields. Audit fields are never transmitted.
func (e Event) Row() map[string]any {
	row := make(map[string]any, len(e.Data)+4)
	for k, v := range e.Data {
		if strings.HasPrefix(k, "_audit_") {
			continue
		}
		row[k] = v
	}
	row["id"] = e.ID
	if e.IsMerge {
		row["_is_merge"] = true
	}
	switch e.Container.Kind {
	case KindExperiment:
		row["experiment_id"] = e.Container.ExperimentID
	case KindProjectLogs:
		row["project_id"] = e.Container.ProjectID
		row["log_id"] = e.Container.LogID
	default:
		panic(fmt.Sprintf("event: unknown container kind %d", e.Container.Kind))
	}
	return row
}
