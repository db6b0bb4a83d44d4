package main

import (
	"database/sql"

	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/sqlite"
	"github.com/mohamed2108268/Smart-Access/internal/db"
	"github.com/mohamed2108268/Smart-Access/internal/logging"
)

// dbHandle is an open database with its single writer.
type dbHandle struct {
	DB     *sql.DB
	writer *db.Worker
}

func (h *dbHandle) admin(sealer service.Sealer, logLevel string) *service.AdminService {
	return service.NewAdminService(
		sqlite.NewAccountStore(h.DB, h.writer),
		sqlite.NewRoomStore(h.DB, h.writer),
		sqlite.NewAccessLogStore(h.DB, h.writer),
		sealer,
		logging.New(logLevel, "text", "smart-access-ctl"),
	)
}

func (h *dbHandle) Close() {
	h.writer.Close()
	_ = h.DB.Close()
}
