package domain

// Change is the decoded intent of an update request: either a status Transition or a FieldEdit.
// An enable/disable directive always wins over field edits sent in the same request.
type Change interface {
	isChange()
}

// Transition moves a user to Target (enable or disable).
type Transition struct {
	Target UserStatus
}

// FieldEdit overwrites only the fields present in Patch.
type FieldEdit struct {
	Patch Patch
}

func (Transition) isChange() {}
func (FieldEdit) isChange()  {}
