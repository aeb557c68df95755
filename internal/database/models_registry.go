package database

import "estatehub/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
// Parents come before children so foreign keys resolve on AutoMigrate.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Listing{},
		&models.Question{},
		&models.QuestionTag{},
		&models.QuestionView{},
		&models.Answer{},
		&models.AnswerComment{},
		&models.Vote{},
		&models.ModerationFlag{},
		&models.Conversation{},
		&models.Message{},
		&models.MessageRead{},
		&models.Ticket{},
	}
}
