// Package acts coordinates delivery of generated equipment transfer acts.
package acts

// Act is one generated transfer document handing equipment from OldEmployee
// to the batch's new employee.
type Act struct {
	OldEmployee    string `json:"old_employee"`
	EquipmentCount int    `json:"equipment_count"`
	DocumentPath   string `json:"document_path"`
	Filename       string `json:"filename"`
}

// Batch is every act produced by one transfer.
type Batch struct {
	NewEmployee     string `json:"new_employee"`
	NewEmployeeDept string `json:"new_employee_dept,omitempty"`
	Acts            []Act  `json:"acts"`
	TotalEquipment  int    `json:"total_equipment"`
	SourceDBName    string `json:"source_db_name"`
}

func (b *Batch) Clone() *Batch {
	if b == nil {
		return nil
	}
	cp := *b
	cp.Acts = append([]Act(nil), b.Acts...)
	return &cp
}

func (b *Batch) Empty() bool {
	return b == nil || len(b.Acts) == 0
}

// Paths lists the documents the batch still references.
func (b *Batch) Paths() []string {
	if b == nil {
		return nil
	}
	out := make([]string, 0, len(b.Acts))
	for _, a := range b.Acts {
		out = append(out, a.DocumentPath)
	}
	return out
}

// without returns a copy holding only the acts whose index is not in sent,
// or nil when nothing is left.
func (b *Batch) without(sent map[int]bool) *Batch {
	rest := b.Clone()
	rest.Acts = rest.Acts[:0]
	rest.TotalEquipment = 0
	for i, a := range b.Acts {
		if sent[i] {
			continue
		}
		rest.Acts = append(rest.Acts, a)
		rest.TotalEquipment += a.EquipmentCount
	}
	if len(rest.Acts) == 0 {
		return nil
	}
	return rest
}

type Method string

const (
	MethodConsolidated Method = "consolidated"
	MethodPerOwnerAuto Method = "per-owner-auto"
	MethodManual       Method = "manual"
)

const (
	ReasonNoEmail   = "no email on file"
	ReasonTransport = "transport failure"
)

type Failure struct {
	Subject string
	Reason  string
}

// Attempt summarizes one delivery call. Remaining holds the acts that still
// need delivery and is nil once every document has been sent.
type Attempt struct {
	Recipient string
	Method    Method
	Successes []string
	Failures  []Failure
	Remaining *Batch
}

func (a *Attempt) AllFailed() bool {
	return len(a.Successes) == 0 && len(a.Failures) > 0
}
