package models

import "gorm.io/gorm"

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&UserProgress{},
		&Task{},
		&TaskCompletion{},
		&Guild{},
		&GuildMember{},
		&ShopPurchase{},
		&SpecialMission{},
		&SpecialMissionProgress{},
		&Boss{},
		&BadgeType{},
		&UserBadge{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
