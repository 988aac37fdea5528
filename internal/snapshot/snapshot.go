// Package snapshot implements the persisted-state layout of spec.md §6: a
// versioned, self-describing Document recording every construct's
// evaluated inputs, published result, and result fingerprint from a prior
// run, so a later run can replay-skip unchanged constructs (§4.4 "result
// fingerprint", S6). Encoding is YAML via gopkg.in/yaml.v3, the corpus's
// default for versioned on-disk documents, kept behind a Codec interface so
// a binary codec could be substituted without touching the scheduler.
package snapshot

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/txtx-labs/runbook-core/internal/identifier"
	"github.com/txtx-labs/runbook-core/internal/value"
	"github.com/txtx-labs/runbook-core/internal/xerrors"
)

// CurrentVersion is the schema version this package writes. A Document
// loaded with an older version is accepted as-is; a newer version is
// rejected, since this package cannot know what it added.
const CurrentVersion = 1

// ConstructRecord is one construct's persisted outcome.
type ConstructRecord struct {
	ID              identifier.ID `yaml:"id"`
	EvaluatedInputs value.Value   `yaml:"evaluated_inputs"`
	Result          value.Value   `yaml:"result"`
	Fingerprint     []byte        `yaml:"fingerprint"`
}

// SignerRecord is one signer construct's persisted state.
type SignerRecord struct {
	ID    identifier.ID `yaml:"id"`
	State value.Value   `yaml:"state"`
}

// Document is the full persisted state of one completed (or partially
// completed) flow: every construct's record in execution order, every
// signer's final state, and the flow metadata needed to recognize that a
// loaded snapshot belongs to the runbook being re-run.
type Document struct {
	SchemaVersion int               `yaml:"schema_version"`
	RunbookID     identifier.ID     `yaml:"runbook_id"`
	FlowName      string            `yaml:"flow_name"`
	Constructs    []ConstructRecord `yaml:"constructs"`
	Signers       []SignerRecord    `yaml:"signers"`
}

// New returns an empty Document for the given runbook/flow, stamped with
// CurrentVersion.
func New(runbookID identifier.ID, flowName string) *Document {
	return &Document{SchemaVersion: CurrentVersion, RunbookID: runbookID, FlowName: flowName}
}

// RecordConstruct appends (or replaces, if already present) a construct's
// persisted record.
func (d *Document) RecordConstruct(rec ConstructRecord) {
	for i, existing := range d.Constructs {
		if existing.ID == rec.ID {
			d.Constructs[i] = rec
			return
		}
	}
	d.Constructs = append(d.Constructs, rec)
}

// RecordSigner appends (or replaces) a signer's persisted state.
func (d *Document) RecordSigner(rec SignerRecord) {
	for i, existing := range d.Signers {
		if existing.ID == rec.ID {
			d.Signers[i] = rec
			return
		}
	}
	d.Signers = append(d.Signers, rec)
}

// CachedResult implements execctx.PriorResults: it looks up a construct's
// persisted result and fingerprint by id.
func (d *Document) CachedResult(id identifier.ID) (value.Value, []byte, bool) {
	for _, rec := range d.Constructs {
		if rec.ID == id {
			return rec.Result, rec.Fingerprint, true
		}
	}
	return value.Value{}, nil, false
}

// Codec encodes/decodes a Document; the default is YAML, but a binary
// format could implement the same interface without touching the
// scheduler or execctx.
type Codec interface {
	Encode(doc *Document) ([]byte, error)
	Decode(data []byte) (*Document, error)
}

// YAMLCodec is the default Codec, built on gopkg.in/yaml.v3.
type YAMLCodec struct{}

func (YAMLCodec) Encode(doc *Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

func (YAMLCodec) Decode(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, xerrors.NewStateError("decoding snapshot document", err)
	}
	if doc.SchemaVersion > CurrentVersion {
		return nil, xerrors.NewStateError("snapshot schema version is newer than this binary supports", nil)
	}
	return &doc, nil
}

// Load reads and decodes a Document from path using codec.
func Load(path string, codec Codec) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.NewStateError("reading snapshot file "+path, err)
	}
	return codec.Decode(data)
}

// Save encodes doc with codec and writes it to path.
func Save(path string, doc *Document, codec Codec) error {
	data, err := codec.Encode(doc)
	if err != nil {
		return xerrors.NewStateError("encoding snapshot document", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return xerrors.NewStateError("writing snapshot file "+path, err)
	}
	return nil
}
