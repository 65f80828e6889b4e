package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const WelcomeSequenceName = "welcome"

var defaultTopics = []string{
	"Designing a custom home around your lot's natural light",
	"Hidden costs to budget for when building a custom home",
	"Choosing the right neighborhood for your forever home",
	"Open floor plans vs. defined rooms: what fits your family",
	"Energy-efficient building materials worth the upfront cost",
	"How long does a custom home build actually take",
	"Questions to ask a home builder before signing a contract",
	"Kitchen design trends that age well",
	"Financing a custom build: construction loans explained",
	"Landscaping decisions to make before you break ground",
}

// SeedDefaults creates the scheduler config and the welcome drip
// sequence if they don't exist. Safe to run on every startup.
func SeedDefaults(db *gorm.DB) error {
	if err := seedSchedulerConfig(db); err != nil {
		return err
	}
	return seedWelcomeSequence(db)
}

func seedSchedulerConfig(db *gorm.DB) error {
	topics, err := json.Marshal(defaultTopics)
	if err != nil {
		return err
	}
	cfg := SchedulerConfig{
		JobName:        ContentGeneratorJob,
		Enabled:        true,
		ArticlesPerDay: 1,
		Topics:         datatypes.JSON(topics),
	}
	return db.FirstOrCreate(&cfg, "job_name = ?", ContentGeneratorJob).Error
}

func seedWelcomeSequence(db *gorm.DB) error {
	seq := EmailSequence{
		Name:        WelcomeSequenceName,
		Description: "Seven-part welcome series for new subscribers",
		TriggerType: TriggerLeadMagnet,
		Active:      true,
	}
	if err := db.FirstOrCreate(&seq, "name = ?", WelcomeSequenceName).Error; err != nil {
		return err
	}

	steps := []EmailTemplate{
		{
			OrderIndex:  1,
			Subject:     "Your Custom Home Planning Guide is here",
			HTMLContent: "<p>Hi {{.Name}},</p><p>Thanks for downloading our planning guide. Here's your copy, plus a few pages worth reading first.</p>",
			TextContent: "Hi {{.Name}}, thanks for downloading our planning guide. Here's your copy.",
		},
		{
			OrderIndex:  2,
			DelayDays:   2,
			Subject:     "The three decisions that shape your whole build",
			HTMLContent: "<p>Hi {{.Name}},</p><p>Lot, layout, and builder. Get these three right and the rest follows. Here's how we think about each.</p>",
			TextContent: "Lot, layout, and builder. Get these three right and the rest follows.",
		},
		{
			OrderIndex:  3,
			DelayDays:   2,
			Subject:     "A walk through one of our recent builds",
			HTMLContent: "<p>Hi {{.Name}},</p><p>Take a photo tour of the Hartwell family's modern farmhouse, from dirt to move-in day.</p>",
			TextContent: "Take a photo tour of a recent build, from dirt to move-in day.",
		},
		{
			OrderIndex:  4,
			DelayDays:   3,
			Subject:     "What does a custom home really cost?",
			HTMLContent: "<p>Hi {{.Name}},</p><p>An honest breakdown of per-square-foot pricing, allowances, and where budgets actually go sideways.</p>",
			TextContent: "An honest breakdown of custom home pricing and allowances.",
		},
		{
			OrderIndex:  5,
			DelayDays:   4,
			Subject:     "Neighborhoods we build in (and why)",
			HTMLContent: "<p>Hi {{.Name}},</p><p>A look at the communities we work in most, with lot availability and school notes for each.</p>",
			TextContent: "A look at the communities we build in most.",
		},
		{
			OrderIndex:  6,
			DelayDays:   5,
			Subject:     "How our design-build process works",
			HTMLContent: "<p>Hi {{.Name}},</p><p>From first sketch to final walkthrough, here's what the next twelve months look like with us.</p>",
			TextContent: "From first sketch to final walkthrough: our design-build process.",
		},
		{
			OrderIndex:  7,
			DelayDays:   7,
			Subject:     "Ready to talk about your project?",
			HTMLContent: "<p>Hi {{.Name}},</p><p>If a custom build is on your horizon, grab a spot on our calendar for a no-pressure consultation.</p>",
			TextContent: "Grab a spot on our calendar for a no-pressure consultation.",
		},
	}

	for _, step := range steps {
		step.SequenceID = seq.ID
		step.Active = true
		if err := db.FirstOrCreate(&step, "sequence_id = ? AND order_index = ?", seq.ID, step.OrderIndex).Error; err != nil {
			return err
		}
	}
	return nil
}
