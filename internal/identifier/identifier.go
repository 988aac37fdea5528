// Package identifier implements the content-addressed identifier model of
// spec.md §3 (L0). Every identifier kind is a disjoint tagged 32-byte digest
// derived from a canonical byte sequence, so re-indexing byte-identical
// sources always reproduces the same ids (testable property #3).
package identifier

import (
	"crypto/sha256"
	"encoding/hex"
)

// ID is a 32-byte content digest. The zero value is reserved; IsZero
// reports it.
type ID [32]byte

// String renders the identifier as hex, truncated for readability the way
// the reference implementation's short-form Did rendering does.
func (id ID) String() string {
	return hex.EncodeToString(id[:])[:16]
}

// IsZero reports whether this is the reserved root identifier.
func (id ID) IsZero() bool {
	return id == ID{}
}

func digest(parts ...string) ID {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0}) // field separator, prevents "ab"+"c" == "a"+"bc" collisions
	}
	var out ID
	copy(out[:], h.Sum(nil))
	return out
}

// PackageID identifies a group of constructs declared together (a single
// runbook source file, or a directory of them).
type PackageID struct {
	ID           ID
	RunbookID    RunbookID
	Location     string
	PackageName  string
}

// NewPackageID derives a PackageID from its constituent parts.
func NewPackageID(runbookID RunbookID, location, packageName string) PackageID {
	return PackageID{
		ID:          digest("package", runbookID.ID.String(), location, packageName),
		RunbookID:   runbookID,
		Location:    location,
		PackageName: packageName,
	}
}

// ConstructKind enumerates the disjoint construct kinds of §4.1.
type ConstructKind string

const (
	KindVariable        ConstructKind = "variable"
	KindOutput          ConstructKind = "output"
	KindModule          ConstructKind = "module"
	KindAction          ConstructKind = "action"
	KindSigner          ConstructKind = "signer"
	KindImport          ConstructKind = "import"
	KindAddonConfig     ConstructKind = "addon-config"
	KindEmbeddedRunbook ConstructKind = "embedded-runbook"
	KindInput           ConstructKind = "input" // synthetic, §4.1 "Environment layer"
)

// ConstructID = digest(package_id, kind, file_location, name), exactly as
// spec.md §4.1 requires.
type ConstructID struct {
	ID           ID
	PackageID    PackageID
	Kind         ConstructKind
	FileLocation string
	Name         string
}

// NewConstructID derives a ConstructID from its constituent parts.
func NewConstructID(pkg PackageID, kind ConstructKind, fileLocation, name string) ConstructID {
	return ConstructID{
		ID:           digest("construct", pkg.ID.String(), string(kind), fileLocation, name),
		PackageID:    pkg,
		Kind:         kind,
		FileLocation: fileLocation,
		Name:         name,
	}
}

// RunbookID identifies a runbook (a collection of packages).
type RunbookID struct {
	ID   ID
	Name string
}

// NewRunbookID derives a RunbookID from its name.
func NewRunbookID(name string) RunbookID {
	return RunbookID{ID: digest("runbook", name), Name: name}
}

// FlowID identifies a run-local binding of a runbook to an environment and
// top-level inputs (a Flow, per the glossary).
type FlowID struct {
	ID        ID
	RunbookID RunbookID
	FlowName  string
}

// NewFlowID derives a FlowID from its runbook and environment name.
func NewFlowID(runbookID RunbookID, flowName string) FlowID {
	return FlowID{ID: digest("flow", runbookID.ID.String(), flowName), RunbookID: runbookID, FlowName: flowName}
}
