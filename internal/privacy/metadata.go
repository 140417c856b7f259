package privacy

// ItemKind classifies a metadata item.
type ItemKind string

const (
	KindSubsystemLink    ItemKind = "subsystem_link"
	KindDatabaseTable    ItemKind = "database_table"
	KindExternalLocation ItemKind = "external_location"
)

// Field is one personal data field with the string key describing it.
type Field struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Item declares one place personal data is stored or sent to.
type Item struct {
	Kind    ItemKind `json:"kind"`
	Name    string   `json:"name"`
	Fields  []Field  `json:"fields"`
	Summary string   `json:"summary"`
}

const (
	// LedgerTable is the local table holding submission records.
	LedgerTable = "plagiarism_compilatio_files"

	externalDocument = "External Compilatio Document"
	externalReport   = "External Compilatio Report"
)

func fields(prefix string, names ...string) []Field {
	out := make([]Field, len(names))
	for i, n := range names {
		out[i] = Field{Name: n, Summary: prefix + ":" + n}
	}
	return out
}

// Metadata describes the personal data handled by the connector, in a fixed order.
func Metadata() []Item {
	return []Item{
		{
			Kind:    KindSubsystemLink,
			Name:    "core_files",
			Fields:  []Field{},
			Summary: "privacy:metadata:core_files",
		},
		{
			Kind:    KindSubsystemLink,
			Name:    "core_plagiarism",
			Fields:  []Field{},
			Summary: "privacy:metadata:core_plagiarism",
		},
		{
			Kind: KindDatabaseTable,
			Name: LedgerTable,
			Fields: fields("privacy:metadata:"+LedgerTable,
				"id", "cm", "userid", "identifier", "filename", "timesubmitted", "statuscode",
				"externalid", "reporturl", "similarityscore", "attempt", "errorresponse"),
			Summary: "privacy:metadata:" + LedgerTable,
		},
		{
			Kind: KindExternalLocation,
			Name: externalDocument,
			Fields: fields("privacy:metadata:external_compilatio_document",
				"lastname", "firstname", "email_adress", "user_id", "filename", "upload_date",
				"id", "indexed"),
			Summary: "privacy:metadata:external_compilatio_document",
		},
		{
			Kind: KindExternalLocation,
			Name: externalReport,
			Fields: fields("privacy:metadata:external_compilatio_report",
				"id", "doc_id", "user_id", "start", "end", "state", "plagiarism_percent"),
			Summary: "privacy:metadata:external_compilatio_report",
		},
	}
}
