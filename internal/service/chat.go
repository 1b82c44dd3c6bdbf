package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/models"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/notify"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ChatService 管理一对一会话与消息。它同时实现 ws.ChatAccess，供中继在 joinChat 时校验成员身份。
type ChatService struct {
	db       *gorm.DB
	notifier notify.Notifier
	// create 合并同一对用户并发的建会话请求，避免撞上唯一索引。
	create singleflight.Group
}

func NewChatService(db *gorm.DB, notifier notify.Notifier) *ChatService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &ChatService{db: db, notifier: notifier}
}

// ChatDTO 是从当前用户视角看到的会话。
type ChatDTO struct {
	ID            uint               `json:"id"`
	PeerID        uint               `json:"peer_id"`
	PeerName      string             `json:"peer_name"`
	LatestMessage *event.ChatMessage `json:"latest_message,omitempty"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func orderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

func peerOf(chat models.Chat, userID uint) uint {
	if chat.UserAID == userID {
		return chat.UserBID
	}
	return chat.UserAID
}

func isParticipant(chat models.Chat, userID uint) bool {
	return chat.UserAID == userID || chat.UserBID == userID
}

// Access 返回两人之间的会话，不存在时创建。
func (s *ChatService) Access(ctx context.Context, userID, peerID uint) (*ChatDTO, error) {
	if peerID == 0 {
		return nil, ErrInvalidInput
	}
	if userID == peerID {
		return nil, ErrSelfChat
	}
	db := s.db.WithContext(ctx)
	var peer models.User
	if err := db.First(&peer, peerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	a, b := orderedPair(userID, peerID)
	key := strconv.FormatUint(uint64(a), 10) + ":" + strconv.FormatUint(uint64(b), 10)
	v, err, _ := s.create.Do(key, func() (any, error) {
		return firstOrCreateChat(db, a, b)
	})
	if err != nil {
		return nil, err
	}
	dtos, err := s.toDTOs(db, userID, []models.Chat{v.(models.Chat)})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

// firstOrCreateChat 查找或创建 (a, b) 的会话。singleflight 只合并本进程内的请求，
// 其他实例抢先插入时唯一索引冲突，改为读取已存在的那一行。
func firstOrCreateChat(db *gorm.DB, a, b uint) (models.Chat, error) {
	var chat models.Chat
	err := db.Where(models.Chat{UserAID: a, UserBID: b}).FirstOrCreate(&chat).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		chat = models.Chat{}
		err = db.Where(models.Chat{UserAID: a, UserBID: b}).First(&chat).Error
	}
	return chat, err
}

// List 返回用户参与的会话，最近活跃的在前。
func (s *ChatService) List(ctx context.Context, userID uint) ([]ChatDTO, error) {
	db := s.db.WithContext(ctx)
	var chats []models.Chat
	if err := db.Where("user_a_id = ? OR user_b_id = ?", userID, userID).
		Order("updated_at desc").Order("id desc").Find(&chats).Error; err != nil {
		return nil, err
	}
	return s.toDTOs(db, userID, chats)
}

// Send 持久化消息，然后推送给会话房间，并给对方的个人房间发一条通知。
func (s *ChatService) Send(ctx context.Context, senderID, chatID uint, content, tempID string) (*event.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	db := s.db.WithContext(ctx)
	chat, err := s.member(db, senderID, chatID)
	if err != nil {
		return nil, err
	}
	var sender models.User
	if err := db.First(&sender, senderID).Error; err != nil {
		return nil, err
	}
	msg := models.ChatMessage{ChatID: chat.ID, SenderID: sender.ID, Content: content}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(&msg).Error; err != nil {
			return err
		}
		return tx.Model(&models.Chat{}).Where("id = ?", chat.ID).
			Updates(map[string]any{"latest_message_id": msg.ID, "updated_at": time.Now()}).Error
	})
	if err != nil {
		return nil, err
	}
	msg.Sender = sender

	out := toChatMessage(msg)
	out.TempID = tempID
	s.notifier.Emit(notify.ChatRoomID(chat.ID), event.MessageReceivedEvent{Message: out})
	s.notifier.Emit(notify.UserRoomID(peerOf(*chat, senderID)), event.NotificationEvent{
		Message: fmt.Sprintf("New message from %s", sender.Name),
	})
	return &out, nil
}

// Messages 分页查询会话消息，按 id 升序返回。
func (s *ChatService) Messages(ctx context.Context, userID, chatID uint, limit int, beforeID uint) ([]event.ChatMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	db := s.db.WithContext(ctx)
	if _, err := s.member(db, userID, chatID); err != nil {
		return nil, err
	}

	q := db.Preload("Sender").Where("chat_id = ?", chatID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}
	var msgs []models.ChatMessage
	if err := q.Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, err
	}

	// 反转为升序
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	out := make([]event.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toChatMessage(m))
	}
	return out, nil
}

// CanJoinChat 校验 userID 是否为 chatID 的参与者。无法解析的 ID 视为无权限。
func (s *ChatService) CanJoinChat(ctx context.Context, userID, chatID string) (bool, error) {
	uid, err := strconv.ParseUint(userID, 10, 64)
	if err != nil {
		return false, nil
	}
	cid, err := strconv.ParseUint(chatID, 10, 64)
	if err != nil {
		return false, nil
	}
	_, err = s.member(s.db.WithContext(ctx), uint(uid), uint(cid))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrChatNotFound), errors.Is(err, ErrForbidden):
		return false, nil
	default:
		return false, err
	}
}

func (s *ChatService) member(db *gorm.DB, userID, chatID uint) (*models.Chat, error) {
	var chat models.Chat
	if err := db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if !isParticipant(chat, userID) {
		return nil, ErrForbidden
	}
	return &chat, nil
}

// toDTOs 批量补齐对方姓名与最新消息。
func (s *ChatService) toDTOs(db *gorm.DB, userID uint, chats []models.Chat) ([]ChatDTO, error) {
	out := make([]ChatDTO, 0, len(chats))
	if len(chats) == 0 {
		return out, nil
	}
	peerIDs := make([]uint, 0, len(chats))
	msgIDs := make([]uint, 0, len(chats))
	for _, c := range chats {
		peerIDs = append(peerIDs, peerOf(c, userID))
		if c.LatestMessageID != nil {
			msgIDs = append(msgIDs, *c.LatestMessageID)
		}
	}

	var peers []models.User
	if err := db.Select("id", "name").Where("id IN ?", peerIDs).Find(&peers).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(peers))
	for _, p := range peers {
		names[p.ID] = p.Name
	}

	latest := make(map[uint]models.ChatMessage, len(msgIDs))
	if len(msgIDs) > 0 {
		var msgs []models.ChatMessage
		if err := db.Preload("Sender").Where("id IN ?", msgIDs).Find(&msgs).Error; err != nil {
			return nil, err
		}
		for _, m := range msgs {
			latest[m.ID] = m
		}
	}

	for _, c := range chats {
		dto := ChatDTO{ID: c.ID, PeerID: peerOf(c, userID), UpdatedAt: c.UpdatedAt}
		dto.PeerName = names[dto.PeerID]
		if c.LatestMessageID != nil {
			if m, ok := latest[*c.LatestMessageID]; ok {
				cm := toChatMessage(m)
				dto.LatestMessage = &cm
			}
		}
		out = append(out, dto)
	}
	return out, nil
}

func toChatMessage(m models.ChatMessage) event.ChatMessage {
	return event.ChatMessage{
		ID:        strconv.FormatUint(uint64(m.ID), 10),
		ChatID:    strconv.FormatUint(uint64(m.ChatID), 10),
		Sender:    event.Sender{ID: strconv.FormatUint(uint64(m.SenderID), 10), Name: m.Sender.Name},
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
