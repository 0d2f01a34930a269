package graph

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	apperrors "tami-graph/backend/pkg/errors"
)

// ============================================================================
// Entity Types
// ============================================================================

// EntityType is a standard entity type or a validated custom one
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeProject      EntityType = "project"
	EntityTypeTopic        EntityType = "topic"
	EntityTypeTechnology   EntityType = "technology"
	EntityTypeProduct      EntityType = "product"
	EntityTypeLocation     EntityType = "location"
	EntityTypeDate         EntityType = "date"
	EntityTypeOther        EntityType = "other"
)

var standardLabels = map[EntityType]string{
	EntityTypePerson:       "Person",
	EntityTypeOrganization: "Organization",
	EntityTypeProject:      "Project",
	EntityTypeTopic:        "Topic",
	EntityTypeTechnology:   "Technology",
	EntityTypeProduct:      "Product",
	EntityTypeLocation:     "Location",
	EntityTypeDate:         "Date",
	EntityTypeOther:        "Other",
}

var customTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]{0,39}$`)

// reservedTypes would collide with the labels of non-entity nodes
var reservedTypes = map[EntityType]bool{
	"entity":      true,
	"meeting":     true,
	"action_item": true,
	"migration":   true,
}

// ParseEntityType validates a type name. Standard names are accepted in any
// case; anything else must look like a lowercase identifier.
func ParseEntityType(s string) (EntityType, error) {
	t := EntityType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := standardLabels[t]; ok {
		return t, nil
	}
	if !customTypeRe.MatchString(string(t)) || reservedTypes[t] {
		return "", apperrors.NewValidation("type", fmt.Sprintf("%q is not a valid entity type", s))
	}
	return t, nil
}

// StandardEntityTypes returns the built-in types in a stable order
func StandardEntityTypes() []EntityType {
	return []EntityType{
		EntityTypePerson, EntityTypeOrganization, EntityTypeProject, EntityTypeTopic,
		EntityTypeTechnology, EntityTypeProduct, EntityTypeLocation, EntityTypeDate, EntityTypeOther,
	}
}

// IsStandard reports whether t is one of the built-in types
func (t EntityType) IsStandard() bool {
	_, ok := standardLabels[t]
	return ok
}

// Label returns the store label for t. Custom types map to PascalCase, so
// "vendor_contract" becomes "VendorContract". Callers must have validated t.
func (t EntityType) Label() string {
	if l, ok := standardLabels[t]; ok {
		return l
	}
	var b strings.Builder
	for _, part := range strings.Split(string(t), "_") {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return standardLabels[EntityTypeOther]
	}
	return b.String()
}

// ============================================================================
// Relationship Types
// ============================================================================

// RelationshipType is a member of the closed relationship vocabulary
type RelationshipType string

const (
	RelMentionedIn      RelationshipType = "MENTIONED_IN"
	RelWorksAt          RelationshipType = "WORKS_AT"
	RelFounded          RelationshipType = "FOUNDED"
	RelLeads            RelationshipType = "LEADS"
	RelManages          RelationshipType = "MANAGES"
	RelWorksOn          RelationshipType = "WORKS_ON"
	RelOwns             RelationshipType = "OWNS"
	RelCollaboratesWith RelationshipType = "COLLABORATES_WITH"
	RelReportsTo        RelationshipType = "REPORTS_TO"
	RelMentors          RelationshipType = "MENTORS"
	RelAssignedTo       RelationshipType = "ASSIGNED_TO"
	RelUses             RelationshipType = "USES"
	RelBuiltWith        RelationshipType = "BUILT_WITH"
	RelDependsOn        RelationshipType = "DEPENDS_ON"
	RelRelatedTo        RelationshipType = "RELATED_TO"
	RelAddresses        RelationshipType = "ADDRESSES"
	RelLocatedIn        RelationshipType = "LOCATED_IN"
	RelOperatesIn       RelationshipType = "OPERATES_IN"
	RelScheduledFor     RelationshipType = "SCHEDULED_FOR"
	RelDueOn            RelationshipType = "DUE_ON"
	RelCreatedIn        RelationshipType = "CREATED_IN"
)

var relationshipVocabulary = map[RelationshipType]bool{
	RelMentionedIn: true, RelWorksAt: true, RelFounded: true, RelLeads: true,
	RelManages: true, RelWorksOn: true, RelOwns: true, RelCollaboratesWith: true,
	RelReportsTo: true, RelMentors: true, RelAssignedTo: true, RelUses: true,
	RelBuiltWith: true, RelDependsOn: true, RelRelatedTo: true, RelAddresses: true,
	RelLocatedIn: true, RelOperatesIn: true, RelScheduledFor: true, RelDueOn: true,
	RelCreatedIn: true,
}

// structuralRelationships link entities to meetings and action items. They
// are never returned by relationship queries or created by CreateRelationship.
var structuralRelationships = []RelationshipType{RelMentionedIn, RelCreatedIn}

// ParseRelationshipType validates a relationship name against the vocabulary.
// Only names that pass may ever appear inside query text.
func ParseRelationshipType(s string) (RelationshipType, error) {
	t := RelationshipType(strings.ToUpper(strings.TrimSpace(s)))
	if !relationshipVocabulary[t] {
		return "", apperrors.NewValidation("relationship_type", fmt.Sprintf("%q is not a known relationship type", s))
	}
	return t, nil
}

// IsStructural reports whether t is a structural edge type
func (t RelationshipType) IsStructural() bool {
	for _, s := range structuralRelationships {
		if s == t {
			return true
		}
	}
	return false
}

// StructuralTypeNames returns the structural edge types as strings, for query parameters
func StructuralTypeNames() []string {
	names := make([]string, len(structuralRelationships))
	for i, t := range structuralRelationships {
		names[i] = string(t)
	}
	return names
}

// ============================================================================
// Compatibility Table
// ============================================================================

type typePair struct {
	from EntityType
	to   EntityType
}

var compatibility = map[typePair][]RelationshipType{
	{EntityTypePerson, EntityTypeOrganization}:   {RelWorksAt, RelFounded, RelLeads},
	{EntityTypePerson, EntityTypeProject}:        {RelManages, RelWorksOn, RelOwns},
	{EntityTypePerson, EntityTypePerson}:         {RelCollaboratesWith, RelReportsTo, RelMentors},
	{EntityTypeProject, EntityTypeTechnology}:    {RelUses, RelBuiltWith, RelDependsOn},
	{EntityTypeProject, EntityTypeProject}:       {RelDependsOn, RelRelatedTo},
	{EntityTypeProject, EntityTypeTopic}:         {RelRelatedTo, RelAddresses},
	{EntityTypeOrganization, EntityTypeLocation}: {RelLocatedIn, RelOperatesIn},
}

var fallbackRelationships = []RelationshipType{RelRelatedTo}

// AllowedRelationships returns the relationship types valid from one entity type to another
func AllowedRelationships(from, to EntityType) []RelationshipType {
	if allowed, ok := compatibility[typePair{from, to}]; ok {
		return allowed
	}
	return fallbackRelationships
}

// ValidateRelationship returns a Conflict error if rel is not allowed for the
// ordered endpoint pair
func ValidateRelationship(from, to EntityType, rel RelationshipType) error {
	for _, allowed := range AllowedRelationships(from, to) {
		if allowed == rel {
			return nil
		}
	}
	names := make([]string, 0)
	for _, allowed := range AllowedRelationships(from, to) {
		names = append(names, string(allowed))
	}
	sort.Strings(names)
	return apperrors.NewConflict(fmt.Sprintf("relationship %s is not valid from %s to %s (allowed: %s)",
		rel, from, to, strings.Join(names, ", ")))
}

// ============================================================================
// Meeting Status
// ============================================================================

// MeetingStatus moves forward only: pending, processing, completed
type MeetingStatus string

const (
	MeetingStatusPending    MeetingStatus = "pending"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusCompleted  MeetingStatus = "completed"
)

// ParseMeetingStatus validates a status name. Empty means pending.
func ParseMeetingStatus(s string) (MeetingStatus, error) {
	switch MeetingStatus(strings.ToLower(strings.TrimSpace(s))) {
	case "", MeetingStatusPending:
		return MeetingStatusPending, nil
	case MeetingStatusProcessing:
		return MeetingStatusProcessing, nil
	case MeetingStatusCompleted:
		return MeetingStatusCompleted, nil
	}
	return "", apperrors.NewValidation("status", fmt.Sprintf("%q is not a meeting status", s))
}

// Rank orders statuses along the lifecycle
func (s MeetingStatus) Rank() int {
	switch s {
	case MeetingStatusProcessing:
		return 1
	case MeetingStatusCompleted:
		return 2
	}
	return 0
}

// ============================================================================
// Direction
// ============================================================================

// Direction filters relationship listings
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// ParseDirection validates a direction. Empty means both.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case "", DirectionBoth:
		return DirectionBoth, nil
	case DirectionOutgoing:
		return DirectionOutgoing, nil
	case DirectionIncoming:
		return DirectionIncoming, nil
	}
	return "", apperrors.NewValidation("direction", fmt.Sprintf("%q must be outgoing, incoming or both", s))
}
