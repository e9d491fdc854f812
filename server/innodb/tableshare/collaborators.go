package tableshare

// Capability is a storage engine feature the compiler asks about.
type Capability string

const (
	// CapPartitioning: the engine stores partitioned tables natively.
	CapPartitioning Capability = "partitioning"
	// CapExtendedKeys: secondary keys implicitly carry the primary key.
	CapExtendedKeys Capability = "extended_keys"
	// CapPrimaryKeyInReadIndex: any index read also yields the primary key.
	CapPrimaryKeyInReadIndex Capability = "primary_key_in_read_index"
	// CapAnyIndexMayBeUnique: every index is a candidate for unique lookups.
	CapAnyIndexMayBeUnique Capability = "any_index_may_be_unique"
	// CapKeyreadOnly: indexes can be scanned without touching rows.
	CapKeyreadOnly Capability = "keyread_only"
	// CapReadOrder: index scans return rows in key order.
	CapReadOrder Capability = "read_order"
)

// EngineHandle is the opaque per-table view of a storage engine.
type EngineHandle interface {
	Name() string
	Supports(cap Capability) bool
}

// EngineRegistry resolves storage engines by name.
type EngineRegistry interface {
	ResolveEngine(name string) (EngineHandle, bool)
}

// CollationHandle describes comparison behaviour of a collation.
type CollationHandle interface {
	ID() uint32
	Name() string
	Charset() string
	// BinarySort reports a collation that compares raw bytes.
	BinarySort() bool
}

// CollationResolver maps collation ids to handles.
type CollationResolver interface {
	ResolveCollation(id uint32) (CollationHandle, bool)
}

// ParserHandle is a loaded full-text parser.
type ParserHandle interface {
	Name() string
}

// ParserLoader loads full-text parsers by name.
type ParserLoader interface {
	LoadFulltextParser(name string) (ParserHandle, bool)
}

// SyntaxGenerator renders a partition tree as canonical definition text.
type SyntaxGenerator interface {
	GeneratePartitionSyntax(info *PartitionInfo) (string, error)
}
