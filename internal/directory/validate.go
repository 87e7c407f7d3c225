package directory

import "rosterd.org/internal/ingest"

// Normalize turns one raw ingested record into a creation request. It is
// pure: no directory lookups, no side effects. Rules apply in order —
// required fields, role, batch — so the first violation wins.
func Normalize(rec ingest.RawRecord) (CreateRequest, error) {
	name := rec.Text("name")
	userID := rec.Text("user_id")
	roll := rec.Text("roll_number")
	password := rec.Text("password")
	rawRole := rec.Text("role")

	if name == "" || userID == "" || roll == "" || password == "" || rawRole == "" {
		return CreateRequest{}, ErrMissingFields
	}
	role, err := ParseProvisionRole(rawRole)
	if err != nil {
		return CreateRequest{}, err
	}

	req := CreateRequest{
		Name:       name,
		UserID:     userID,
		RollNumber: roll,
		Password:   password,
		Role:       role,
	}
	if role == RoleStudent {
		if batch := rec.Text("batch"); batch != "" {
			if !ValidBatch(batch) {
				return CreateRequest{}, ErrInvalidBatch
			}
			req.Batch = batch
		}
		// Semester is carried through unvalidated; range limits belong to
		// the storage layer.
		req.Semester = 1
		if sem, ok := rec.Int("semester"); ok && sem != 0 {
			req.Semester = sem
		}
	}
	return req, nil
}
