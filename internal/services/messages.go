package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/h4ks-com/crop-notifier/internal/models"
	"github.com/h4ks-com/crop-notifier/internal/repository"
)

const (
	harvestReadyTitle = "Harvest ready"
	dailySummaryTitle = "Daily farm report"
	testTitle         = "Test notification"
	broadcastTitle    = "System notification"
)

func cropLabel(crop models.UserCrop) string {
	name := crop.CropType.Name
	if name == "" {
		name = "Unknown crop"
	}
	name = html.EscapeString(name)
	if crop.Quantity > 1 {
		return fmt.Sprintf("%s x%d", name, crop.Quantity)
	}
	return name
}

func harvestReadyMessage(crop models.UserCrop, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🌻 <b>Harvest ready!</b>\n\n")
	fmt.Fprintf(&b, "🌱 <b>Crop:</b> %s\n", cropLabel(crop))
	fmt.Fprintf(&b, "⏰ <b>Ready since:</b> %s\n\n", crop.HarvestReadyAt.In(loc).Format("2006-01-02 15:04"))
	b.WriteString("🎉 Your crop is ready to harvest. Head to your farm to collect it and plant something new.")
	return b.String()
}

func dailySummaryMessage(counts repository.CropCounts, active []models.UserCrop, now time.Time, limit int, loc *time.Location) string {
	var ready, growing []models.UserCrop
	for _, crop := range active {
		if crop.ReadyAt(now) {
			ready = append(ready, crop)
		} else {
			growing = append(growing, crop)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 <b>Daily report for %s</b>\n\n", now.In(loc).Format("2006-01-02"))
	fmt.Fprintf(&b, "%d growing, %d ready, %d harvested\n", counts.Growing, counts.Ready, counts.Harvested)

	if len(ready) > 0 {
		b.WriteString("\n🚨 <b>Ready to harvest:</b>\n")
		writeCropList(&b, ready, limit, func(models.UserCrop) string { return "" })
	}
	if len(growing) > 0 {
		b.WriteString("\n⏰ <b>Still growing:</b>\n")
		writeCropList(&b, growing, limit, func(crop models.UserCrop) string {
			return " (" + formatTimeLeft(crop.HarvestReadyAt.Sub(now)) + ")"
		})
	}

	b.WriteString("\n🌻 <b>Have a great day on the farm!</b>")
	return b.String()
}

func writeCropList(b *strings.Builder, crops []models.UserCrop, limit int, suffix func(models.UserCrop) string) {
	if limit <= 0 {
		limit = len(crops)
	}
	for i, crop := range crops {
		if i == limit {
			fmt.Fprintf(b, "• ... and %d more\n", len(crops)-limit)
			return
		}
		fmt.Fprintf(b, "• %s%s\n", cropLabel(crop), suffix(crop))
	}
}

func formatTimeLeft(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

func testMessage(username string, now time.Time, loc *time.Location) string {
	return fmt.Sprintf("🔔 <b>Test notification</b>\n\nHi %s, notifications are working.\nSent at %s.",
		html.EscapeString(username), now.In(loc).Format("2006-01-02 15:04"))
}

// broadcastMessage keeps the body as given; it is admin supplied HTML.
func broadcastMessage(title, body string) string {
	return fmt.Sprintf("📢 <b>%s</b>\n\n%s", html.EscapeString(title), body)
}
