package repository

import (
	"context"
	"time"

	"estatehub/internal/models"
	"estatehub/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository persists buyer/seller conversations, their messages and read receipts.
type ChatRepository interface {
	FindByTriple(ctx context.Context, itemID, sellerID, buyerID uint) (*models.Conversation, error)
	// CreateWithIntro inserts conv unless the triple already exists and, when
	// the insert won, stores intro as the first message. It reports whether
	// this call created the conversation.
	CreateWithIntro(ctx context.Context, conv *models.Conversation, intro *models.Message) (bool, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uint) ([]*models.Conversation, error)
	ListActiveForItem(ctx context.Context, itemID uint) ([]*models.Conversation, error)
	Deactivate(ctx context.Context, ids []uint) error
	// ListMessages returns one page of messages oldest-first, the page being
	// counted from the newest message.
	ListMessages(ctx context.Context, convID uint, page Page) ([]*models.Message, bool, error)
	CreateMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) error
	MarkRead(ctx context.Context, conv *models.Conversation, readerID uint, at time.Time) (int64, error)
	UnreadCount(ctx context.Context, userID uint) (int64, error)
}

type chatRepository struct {
	db     *gorm.DB
	logger *observability.RepoLogger
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db, logger: observability.NewRepoLogger("conversations")}
}

func (r *chatRepository) FindByTriple(ctx context.Context, itemID, sellerID, buyerID uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND seller_id = ? AND buyer_id = ?", itemID, sellerID, buyerID).
		Take(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *chatRepository) CreateWithIntro(ctx context.Context, conv *models.Conversation, intro *models.Message) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "item_id"}, {Name: "seller_id"}, {Name: "buyer_id"}},
			DoNothing: true,
		}).Create(conv)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if intro == nil {
			return nil
		}
		intro.ConversationID = conv.ID
		return tx.Create(intro).Error
	})
	if err != nil {
		return false, err
	}
	if created {
		r.logger.LogWrite(ctx, "create", map[string]interface{}{
			"id": conv.ID, "item_id": conv.ItemID, "seller_id": conv.SellerID, "buyer_id": conv.BuyerID,
		})
	}
	return created, nil
}

func withParties(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Item", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Preload("Seller").
		Preload("Buyer")
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	if err := withParties(r.db.WithContext(ctx)).First(&conv, id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

const unreadForParticipant = `(SELECT COUNT(*) FROM messages m
	WHERE m.conversation_id = conversations.id
	AND m.sender_id <> ?
	AND m.created_at > CASE WHEN conversations.seller_id = ? THEN conversations.seller_last_read_at ELSE conversations.buyer_last_read_at END
) AS unread_count`

func (r *chatRepository) ListConversations(ctx context.Context, userID uint) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := withParties(readDB(r.db).WithContext(ctx)).
		Select("conversations.*, "+unreadForParticipant, userID, userID).
		Where("(conversations.seller_id = ? OR conversations.buyer_id = ?) AND conversations.is_active = ?", userID, userID, true).
		Order("conversations.last_message_at DESC").
		Order("conversations.id DESC").
		Find(&convs).Error
	return convs, err
}

func (r *chatRepository) ListActiveForItem(ctx context.Context, itemID uint) ([]*models.Conversation, error) {
	var convs []*models.Conversation
	err := r.db.WithContext(ctx).
		Where("item_id = ? AND is_active = ?", itemID, true).
		Order("id ASC").
		Find(&convs).Error
	return convs, err
}

func (r *chatRepository) Deactivate(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Conversation{}).Where("id IN ?", ids).Update("is_active", false).Error
}

func (r *chatRepository) ListMessages(ctx context.Context, convID uint, page Page) ([]*models.Message, bool, error) {
	var messages []*models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", convID).
		Preload("Sender").
		Preload("ReadBy").
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit + 1).
		Find(&messages).Error
	if err != nil {
		return nil, false, err
	}

	hasMore := len(messages) > page.Limit
	if hasMore {
		messages = messages[:page.Limit]
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, hasMore, nil
}

func (r *chatRepository) CreateMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msg.ConversationID = conv.ID
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		receipt := models.MessageRead{MessageID: msg.ID, ReaderID: msg.SenderID, ReadAt: msg.CreatedAt}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error; err != nil {
			return err
		}
		msg.ReadBy = []models.MessageRead{receipt}

		updates := map[string]interface{}{
			"last_message":    msg.Body,
			"last_message_at": msg.CreatedAt,
			"updated_at":      msg.CreatedAt,
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).UpdateColumns(updates).Error
	})
	if err != nil {
		r.logger.LogError(ctx, err, "create_message")
		return err
	}
	conv.LastMessage = msg.Body
	conv.LastMessageAt = msg.CreatedAt
	return nil
}

func (r *chatRepository) MarkRead(ctx context.Context, conv *models.Conversation, readerID uint, at time.Time) (int64, error) {
	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(
			`INSERT INTO message_reads (message_id, reader_id, read_at)
			SELECT m.id, ?, ? FROM messages m
			WHERE m.conversation_id = ? AND m.sender_id <> ?
			AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.reader_id = ?)`,
			readerID, at, conv.ID, readerID, readerID,
		)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).
			UpdateColumn(conv.LastReadColumn(readerID), at).Error
	})
	if err != nil {
		r.logger.LogError(ctx, err, "mark_read")
		return 0, err
	}
	return inserted, nil
}

func (r *chatRepository) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := readDB(r.db).WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE c.is_active = ? AND (c.seller_id = ? OR c.buyer_id = ?)
		AND m.sender_id <> ?
		AND m.created_at > CASE WHEN c.seller_id = ? THEN c.seller_last_read_at ELSE c.buyer_last_read_at END`,
		true, userID, userID, userID, userID,
	).Scan(&n).Error
	return n, err
}
