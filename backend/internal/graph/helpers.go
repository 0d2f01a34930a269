package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Helper Functions
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	if i, ok := val.(int64); ok {
		return i
	}
	if i, ok := val.(int); ok {
		return int64(i)
	}
	return 0
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func getBoolFromRecord(record *neo4j.Record, key string) bool {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return false
	}
	b, _ := val.(bool)
	return b
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	return toStringSlice(val)
}

func getNodeFromRecord(record *neo4j.Record, key string) (neo4j.Node, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return neo4j.Node{}, false
	}
	node, ok := val.(neo4j.Node)
	return node, ok
}

func getRelationshipFromRecord(record *neo4j.Record, key string) (neo4j.Relationship, bool) {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return neo4j.Relationship{}, false
	}
	rel, ok := val.(neo4j.Relationship)
	return rel, ok
}

func getStringFromMap(m map[string]interface{}, key string, defaultValue string) string {
	if val, ok := m[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultValue
}

func getInt64FromMap(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func getFloat64FromMap(m map[string]interface{}, key string, defaultValue float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return defaultValue
}

func getOptionalFloat64FromMap(m map[string]interface{}, key string) *float64 {
	if _, ok := m[key]; !ok || m[key] == nil {
		return nil
	}
	f := getFloat64FromMap(m, key, 0)
	return &f
}

func getBoolFromMap(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getTimeFromMap(m map[string]interface{}, key string) time.Time {
	switch v := m[key].(type) {
	case time.Time:
		return v
	case neo4j.LocalDateTime:
		return v.Time()
	case neo4j.Date:
		return v.Time()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func getStringSliceFromMap(m map[string]interface{}, key string) []string {
	return toStringSlice(m[key])
}

func toStringSlice(val interface{}) []string {
	switch v := val.(type) {
	case []string:
		return append([]string{}, v...)
	case []interface{}:
		result := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				result = append(result, str)
			}
		}
		return result
	}
	return []string{}
}

// ============================================================================
// Decoding
// ============================================================================

func entityFromProps(props map[string]interface{}) *Entity {
	return &Entity{
		ID:              getStringFromMap(props, "id", ""),
		OwnerID:         getStringFromMap(props, "user_id", ""),
		Type:            EntityType(getStringFromMap(props, "type", "")),
		NormalizedValue: getStringFromMap(props, "normalized_value", ""),
		DisplayValue:    getStringFromMap(props, "display_value", ""),
		Aliases:         getStringSliceFromMap(props, "aliases"),
		Description:     getStringFromMap(props, "description", ""),
		MentionCount:    getInt64FromMap(props, "mention_count"),
		Confidence:      getFloat64FromMap(props, "confidence", 0),
		FirstSeen:       getTimeFromMap(props, "first_seen"),
		LastSeen:        getTimeFromMap(props, "last_seen"),
		SentimentAvg:    getOptionalFloat64FromMap(props, "sentiment_avg"),
		IsUserCreated:   getBoolFromMap(props, "is_user_created"),
		CreatedAt:       getTimeFromMap(props, "created_at"),
		UpdatedAt:       getTimeFromMap(props, "updated_at"),
	}
}

func meetingFromProps(props map[string]interface{}) *Meeting {
	return &Meeting{
		ID:               getStringFromMap(props, "id", ""),
		OwnerID:          getStringFromMap(props, "user_id", ""),
		Title:            getStringFromMap(props, "title", ""),
		Status:           MeetingStatus(getStringFromMap(props, "status", string(MeetingStatusPending))),
		DurationSeconds:  getFloat64FromMap(props, "duration_seconds", 0),
		DetectedLanguage: getStringFromMap(props, "detected_language", ""),
		CreatedAt:        getTimeFromMap(props, "created_at"),
	}
}

func mentionFromProps(entityID, meetingID string, props map[string]interface{}) *Mention {
	return &Mention{
		EntityID:       entityID,
		MeetingID:      meetingID,
		Context:        getStringFromMap(props, "context", ""),
		TimestampStart: getOptionalFloat64FromMap(props, "timestamp_start"),
		TimestampEnd:   getOptionalFloat64FromMap(props, "timestamp_end"),
		Speaker:        getStringFromMap(props, "speaker", ""),
		MentionCount:   getInt64FromMap(props, "mention_count"),
		Sentiment:      getOptionalFloat64FromMap(props, "sentiment"),
		CreatedAt:      getTimeFromMap(props, "created_at"),
	}
}

// relationshipProps are stored as fields of Relationship rather than in Properties
var relationshipProps = map[string]bool{
	"confidence": true, "source": true, "strength": true, "created_at": true, "updated_at": true,
}

// ReservedRelationshipProperty reports whether key is managed by the store
func ReservedRelationshipProperty(key string) bool {
	return relationshipProps[key]
}

func relationshipFromProps(fromID, toID string, relType RelationshipType, props map[string]interface{}) *Relationship {
	rel := &Relationship{
		FromID:     fromID,
		ToID:       toID,
		Type:       relType,
		Confidence: getFloat64FromMap(props, "confidence", 0),
		Source:     getStringFromMap(props, "source", ""),
		Strength:   getInt64FromMap(props, "strength"),
		CreatedAt:  getTimeFromMap(props, "created_at"),
		UpdatedAt:  getTimeFromMap(props, "updated_at"),
	}
	for k, v := range props {
		if relationshipProps[k] {
			continue
		}
		if rel.Properties == nil {
			rel.Properties = make(map[string]interface{})
		}
		rel.Properties[k] = v
	}
	return rel
}

func actionItemFromProps(props map[string]interface{}) *ActionItem {
	item := &ActionItem{
		ID:          getStringFromMap(props, "id", ""),
		OwnerID:     getStringFromMap(props, "user_id", ""),
		MeetingID:   getStringFromMap(props, "meeting_id", ""),
		Description: getStringFromMap(props, "description", ""),
		Assignee:    getStringFromMap(props, "assignee", ""),
		Status:      getStringFromMap(props, "status", ""),
		CreatedAt:   getTimeFromMap(props, "created_at"),
	}
	if due := getTimeFromMap(props, "due_date"); !due.IsZero() {
		item.DueDate = &due
	}
	return item
}

func graphNodeFromNode(node neo4j.Node, depth int) GraphNode {
	kind := NodeKindEntity
	for _, l := range node.Labels {
		if l == "Meeting" {
			kind = NodeKindMeeting
		}
	}
	n := GraphNode{
		ID:    getStringFromMap(node.Props, "id", ""),
		Kind:  kind,
		Depth: depth,
	}
	if kind == NodeKindMeeting {
		n.Label = getStringFromMap(node.Props, "title", "")
	} else {
		n.Type = EntityType(getStringFromMap(node.Props, "type", ""))
		n.Label = getStringFromMap(node.Props, "display_value", "")
	}
	return n
}

func copyProps(props map[string]interface{}) map[string]interface{} {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

// ============================================================================
// Error Mapping
// ============================================================================

// storeError classifies a driver error. Typed errors raised inside a
// transaction function pass through unchanged.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if apperrors.TypeOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || neo4j.IsConnectivityError(err) {
		return apperrors.NewStoreUnavailable(op, err)
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.TransientError") {
		return apperrors.NewStoreUnavailable(op, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.NewStoreQueryFailed(op, err)
}
