package model

import "time"

// Well-known work item field references
const (
	FieldWorkItemType = "System.WorkItemType"
	FieldTitle        = "System.Title"
	FieldState        = "System.State"
	FieldAssignedTo   = "System.AssignedTo"
	FieldTags         = "System.Tags"
)

// WorkItem is a tracked work item with its field bag
type WorkItem struct {
	ID        int                    `json:"id" yaml:"id"`
	Rev       int                    `json:"rev,omitempty" yaml:"rev,omitempty"`
	Fields    map[string]interface{} `json:"fields" yaml:"fields"`
	URL       string                 `json:"url,omitempty" yaml:"url,omitempty"`
	Relations []Relation             `json:"relations,omitempty" yaml:"relations,omitempty"`
}

// Relation links a work item to another resource
type Relation struct {
	Rel        string                 `json:"rel" yaml:"rel"`
	URL        string                 `json:"url" yaml:"url"`
	Attributes map[string]interface{} `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

// Type returns the work item type field
func (w WorkItem) Type() string {
	s, _ := w.Fields[FieldWorkItemType].(string)
	return s
}

// Title returns the title field
func (w WorkItem) Title() string {
	s, _ := w.Fields[FieldTitle].(string)
	return s
}

// Identity is a user reference
type Identity struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	DisplayName string `json:"displayName" yaml:"displayName"`
	UniqueName  string `json:"uniqueName,omitempty" yaml:"uniqueName,omitempty"`
}

// Change is a commit or changeset associated with a build
type Change struct {
	ID        string     `json:"id" yaml:"id"`
	Message   string     `json:"message" yaml:"message"`
	Type      string     `json:"type,omitempty" yaml:"type,omitempty"`
	Author    Identity   `json:"author" yaml:"author"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Location  string     `json:"location,omitempty" yaml:"location,omitempty"`
}

// Definition references a build or release definition
type Definition struct {
	ID   int    `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Build describes the build the notes are generated for
type Build struct {
	ID            int         `json:"id" yaml:"id"`
	BuildNumber   string      `json:"buildNumber" yaml:"buildNumber"`
	Definition    *Definition `json:"definition,omitempty" yaml:"definition,omitempty"`
	SourceBranch  string      `json:"sourceBranch,omitempty" yaml:"sourceBranch,omitempty"`
	SourceVersion string      `json:"sourceVersion,omitempty" yaml:"sourceVersion,omitempty"`
	Reason        string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Status        string      `json:"status,omitempty" yaml:"status,omitempty"`
	Result        string      `json:"result,omitempty" yaml:"result,omitempty"`
	RequestedFor  *Identity   `json:"requestedFor,omitempty" yaml:"requestedFor,omitempty"`
	StartTime     *time.Time  `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	FinishTime    *time.Time  `json:"finishTime,omitempty" yaml:"finishTime,omitempty"`
	Tags          []string    `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Release describes a release, or the release being compared against
type Release struct {
	ID                int         `json:"id" yaml:"id"`
	Name              string      `json:"name" yaml:"name"`
	Description       string      `json:"description,omitempty" yaml:"description,omitempty"`
	ReleaseDefinition *Definition `json:"releaseDefinition,omitempty" yaml:"releaseDefinition,omitempty"`
	CreatedBy         *Identity   `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedOn         *time.Time  `json:"createdOn,omitempty" yaml:"createdOn,omitempty"`
	Reason            string      `json:"reason,omitempty" yaml:"reason,omitempty"`
	Status            string      `json:"status,omitempty" yaml:"status,omitempty"`
}
