package config

import (
	"context"
	"strings"

	"github.com/mmdatafocus/sellerdash_backend/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OwnerGuardPlugin scopes reads and writes on seller-owned tables (any model
// with a user_id column) to the signed-in seller found on the statement context.
//
// NOTE:
// - This does NOT apply to Raw SQL queries. Those must include user_id manually.
// - Statements without a user id on the context (CLI tools, mirror sync) run unscoped.
type OwnerGuardPlugin struct{}

func NewOwnerGuardPlugin() *OwnerGuardPlugin { return &OwnerGuardPlugin{} }

func (p *OwnerGuardPlugin) Name() string { return "owner_guard" }

func (p *OwnerGuardPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Query().Before("gorm:query").Register("owner_guard:query", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("owner_guard:row", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("owner_guard:update", ownerGuardCallback); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("owner_guard:delete", ownerGuardCallback); err != nil {
		return err
	}
	return nil
}

func ownerGuardCallback(db *gorm.DB) {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return
	}
	userId := ownerFromContext(db.Statement.Context)
	if userId == "" {
		return
	}
	if db.Statement.Schema.LookUpField("user_id") == nil {
		return
	}
	// Don't duplicate an explicit owner filter.
	if whereHasUserId(db.Statement.Clauses["WHERE"]) {
		return
	}
	db.Statement.AddClause(clause.Where{
		Exprs: []clause.Expression{
			clause.Eq{
				Column: clause.Column{Table: db.Statement.Table, Name: "user_id"},
				Value:  userId,
			},
		},
	})
}

func ownerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := appctx.GetString(ctx, appctx.ContextKeyUserId)
	return v
}

func whereHasUserId(c clause.Clause) bool {
	if c.Expression == nil {
		return false
	}
	w, ok := c.Expression.(clause.Where)
	if !ok {
		return false
	}
	for _, e := range w.Exprs {
		if exprHasUserId(e) {
			return true
		}
	}
	return false
}

func exprHasUserId(e clause.Expression) bool {
	switch v := e.(type) {
	case clause.Eq:
		return colIsUserId(v.Column)
	case clause.IN:
		return colIsUserId(v.Column)
	case clause.AndConditions:
		for _, x := range v.Exprs {
			if exprHasUserId(x) {
				return true
			}
		}
		return false
	case clause.Expr:
		// Best-effort for raw expressions.
		return strings.Contains(strings.ToLower(v.SQL), "user_id")
	default:
		return false
	}
}

func colIsUserId(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, "user_id")
	case clause.Column:
		return strings.EqualFold(c.Name, "user_id")
	default:
		return false
	}
}
