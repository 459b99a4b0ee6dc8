package core

import (
	"strings"
	"time"
	"unicode/utf8"
)

const MaxCategoryLength = 100

// Kind classifies a transaction as income or expense. The zero value is
// not a valid kind; use the constants or ParseKind.
type Kind uint8

const (
	Income Kind = iota + 1
	Expense
)

type (
	// Transaction is a stored ledger record.
	Transaction struct {
		ID        int64
		OwnerID   int64
		Kind      Kind
		Category  string
		Amount    Money
		Note      *string
		CreatedAt time.Time
	}

	// NewTransaction carries the caller-supplied fields of an add.
	NewTransaction struct {
		OwnerID  int64
		Kind     Kind
		Category string
		Amount   Money
		Note     *string
	}

	// Patch lists the fields to change on update. Nil fields are left
	// untouched; ClearNote removes the note.
	Patch struct {
		Kind      *Kind
		Category  *string
		Amount    *Money
		Note      *string
		ClearNote bool
	}
)

// Kinds returns both kinds in their canonical order.
func Kinds() []Kind { return []Kind{Income, Expense} }

// ParseKind maps the persisted string form back to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return Income, nil
	case "expense":
		return Expense, nil
	default:
		return 0, ErrInvalidKind
	}
}

func (k Kind) String() string {
	switch k {
	case Income:
		return "income"
	case Expense:
		return "expense"
	default:
		return "unknown"
	}
}

func (k Kind) Valid() bool { return k == Income || k == Expense }

func (k Kind) Validate() error {
	if !k.Valid() {
		return ErrInvalidKind
	}
	return nil
}

func (k Kind) MarshalText() ([]byte, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ValidateCategory checks a category label. Surrounding whitespace does not
// count towards its content.
func ValidateCategory(c string) error {
	c = strings.TrimSpace(c)
	if c == "" {
		return ErrEmptyCategory
	}
	if utf8.RuneCountInString(c) > MaxCategoryLength {
		return ErrCategoryTooLong
	}
	return nil
}

func (n NewTransaction) Validate() error {
	if n.OwnerID == 0 {
		return ErrInvalidOwner
	}
	if err := n.Kind.Validate(); err != nil {
		return err
	}
	if err := ValidateCategory(n.Category); err != nil {
		return err
	}
	return n.Amount.Validate()
}

// Normalize trims the category and drops a blank note.
func (n NewTransaction) Normalize() NewTransaction {
	n.Category = strings.TrimSpace(n.Category)
	n.Note = normalizeNote(n.Note)
	return n
}

func (p Patch) Validate() error {
	if p.Kind != nil {
		if err := p.Kind.Validate(); err != nil {
			return err
		}
	}
	if p.Category != nil {
		if err := ValidateCategory(*p.Category); err != nil {
			return err
		}
	}
	if p.Amount != nil {
		if err := p.Amount.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Normalize trims the category and turns a blank note into ClearNote.
func (p Patch) Normalize() Patch {
	if p.Category != nil {
		c := strings.TrimSpace(*p.Category)
		p.Category = &c
	}
	if p.Note != nil {
		p.Note = normalizeNote(p.Note)
		if p.Note == nil {
			p.ClearNote = true
		}
	}
	if p.ClearNote {
		p.Note = nil
	}
	return p
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Kind == nil && p.Category == nil && p.Amount == nil && p.Note == nil && !p.ClearNote
}

// Apply returns t with the patch applied. The patch must be normalized.
func (p Patch) Apply(t Transaction) Transaction {
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.ClearNote {
		t.Note = nil
	} else if p.Note != nil {
		n := *p.Note
		t.Note = &n
	}
	return t
}

// Validate checks the invariants every stored record must hold.
func (t Transaction) Validate() error {
	return NewTransaction{
		OwnerID:  t.OwnerID,
		Kind:     t.Kind,
		Category: t.Category,
		Amount:   t.Amount,
	}.Validate()
}

// NoteText returns the note or an empty string.
func (t Transaction) NoteText() string {
	if t.Note == nil {
		return ""
	}
	return *t.Note
}

func normalizeNote(n *string) *string {
	if n == nil {
		return nil
	}
	s := strings.TrimSpace(*n)
	if s == "" {
		return nil
	}
	return &s
}

// StringPtr is a convenience for optional string fields.
func StringPtr(s string) *string { return &s }
