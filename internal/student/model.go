package student

import "github.com/uptrace/bun"

type Institution struct {
	bun.BaseModel `bun:"table:institutions,alias:i"`

	ID   int    `bun:"id,pk,autoincrement" json:"id"`
	Code string `bun:"code,unique,notnull" json:"code"`
	Name string `bun:"name,notnull" json:"name"`
}

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID            int          `bun:"id,pk,autoincrement" json:"id"`
	USN           string       `bun:"usn,unique,notnull" json:"usn"`
	Name          string       `bun:"name,notnull" json:"name"`
	InstitutionID int          `bun:"institution_id,notnull" json:"institution_id"`
	Institution   *Institution `bun:"rel:belongs-to,join:institution_id=id" json:"institution,omitempty"`
	ReapplyCount  int          `bun:"reapply_count,notnull,default:0" json:"reapply_count"`
}
