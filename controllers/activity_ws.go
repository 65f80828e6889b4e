package controller

import (
	"time"

	"homewright/models"

	"github.com/gofiber/websocket/v2"
)

// ActivityStream pushes new bot activity log entries to the admin
// dashboard as they are written. Polls the table rather than hooking
// writes; a few seconds of latency is fine for a dashboard feed.
func (sc *SchedulerController) ActivityStream() func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		// Start from the current tail so a new connection doesn't
		// replay history
		var lastID uint
		var latest models.BotActivityLog
		if err := sc.DB.Order("id DESC").First(&latest).Error; err == nil {
			lastID = latest.ID
		}

		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			var entries []models.BotActivityLog
			if err := sc.DB.Where("id > ?", lastID).Order("id").Find(&entries).Error; err != nil {
				sc.Logger.Printf("Activity stream query failed: %v", err)
				return
			}

			for _, entry := range entries {
				if err := c.WriteJSON(entry); err != nil {
					return
				}
				lastID = entry.ID
			}
		}
	}
}
