package metadata

// ConfigurationSource records who configured a piece of metadata. A setter
// carrying a lower source than the one already recorded is rejected.
type ConfigurationSource int

const (
	// SourceConvention is used by conventions and is the zero value
	SourceConvention ConfigurationSource = iota
	// SourceDataAnnotation is used for values discovered from declarative markers
	SourceDataAnnotation
	// SourceExplicit is used for values configured directly by the user
	SourceExplicit
)

// String returns the string representation of the configuration source
func (s ConfigurationSource) String() string {
	switch s {
	case SourceConvention:
		return "convention"
	case SourceDataAnnotation:
		return "data_annotation"
	case SourceExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// Overrides reports whether a value configured from s may replace one configured from other
func (s ConfigurationSource) Overrides(other ConfigurationSource) bool {
	return s >= other
}

// ValueGenerated describes when the store produces a value for a property
type ValueGenerated int

const (
	// ValueGeneratedUnspecified means no strategy has been computed or configured
	ValueGeneratedUnspecified ValueGenerated = iota
	// ValueGeneratedNever means the caller always supplies the value
	ValueGeneratedNever
	// ValueGeneratedOnAdd means the store generates the value on insert
	ValueGeneratedOnAdd
	// ValueGeneratedOnAddOrUpdate means the store generates the value on insert and update
	ValueGeneratedOnAddOrUpdate
)

// String returns the string representation of the strategy
func (v ValueGenerated) String() string {
	switch v {
	case ValueGeneratedUnspecified:
		return "unspecified"
	case ValueGeneratedNever:
		return "never"
	case ValueGeneratedOnAdd:
		return "on_add"
	case ValueGeneratedOnAddOrUpdate:
		return "on_add_or_update"
	default:
		return "unknown"
	}
}

// Marker is a declarative annotation discovered on a Go type or field
type Marker string

const (
	// MarkerKey marks a field as part of the primary key
	MarkerKey Marker = "key"
	// MarkerConcurrencyCheck marks a field as an optimistic concurrency token
	MarkerConcurrencyCheck Marker = "concurrency"
	// MarkerKeyless marks an entity type as having no primary key
	MarkerKeyless Marker = "keyless"
)

type markerSet map[Marker]struct{}

func newMarkerSet(markers []Marker) markerSet {
	set := make(markerSet, len(markers))
	for _, m := range markers {
		set[m] = struct{}{}
	}
	return set
}

func (s markerSet) has(m Marker) bool {
	_, ok := s[m]
	return ok
}
