package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aulalink/aulalink-api/internal/models"
	appErrors "github.com/aulalink/aulalink-api/pkg/errors"
)

type mockThreadRepo struct {
	threads      map[int64]*models.Thread
	participants map[int64][]int64
	oneToOne     map[[2]int64]int64
	nextThreadID int64
	nextMsgID    int64
	messages     []models.Message
	marked       map[int64]int
	unread       map[int64]int
}

func (m *mockThreadRepo) pairKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

func (m *mockThreadRepo) Create(ctx context.Context, thread *models.Thread, participantIDs []int64, message *models.Message) error {
	m.nextThreadID++
	thread.ID = m.nextThreadID
	cp := *thread
	m.threads[thread.ID] = &cp
	m.participants[thread.ID] = append([]int64(nil), participantIDs...)
	if message != nil {
		m.nextMsgID++
		message.ID = m.nextMsgID
		message.ThreadID = thread.ID
		m.messages = append(m.messages, *message)
	}
	if thread.IsOneToOne && len(participantIDs) == 2 {
		m.oneToOne[m.pairKey(participantIDs[0], participantIDs[1])] = thread.ID
	}
	return nil
}

func (m *mockThreadRepo) FindOneToOne(ctx context.Context, userA, userB int64) (*models.Thread, error) {
	if id, ok := m.oneToOne[m.pairKey(userA, userB)]; ok {
		cp := *m.threads[id]
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockThreadRepo) GetByID(ctx context.Context, id int64) (*models.Thread, error) {
	if th, ok := m.threads[id]; ok {
		cp := *th
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockThreadRepo) IsParticipant(ctx context.Context, threadID, userID int64) (bool, error) {
	for _, id := range m.participants[threadID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockThreadRepo) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ThreadSummary, int, error) {
	var out []models.ThreadSummary
	for id, th := range m.threads {
		for _, p := range m.participants[id] {
			if p == userID {
				out = append(out, models.ThreadSummary{Thread: *th})
			}
		}
	}
	return out, len(out), nil
}

func (m *mockThreadRepo) ListMessages(ctx context.Context, threadID int64, page, pageSize int) ([]models.Message, int, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ThreadID == threadID {
			out = append(out, msg)
		}
	}
	return out, len(out), nil
}

func (m *mockThreadRepo) InsertMessage(ctx context.Context, message *models.Message) error {
	m.nextMsgID++
	message.ID = m.nextMsgID
	m.messages = append(m.messages, *message)
	return nil
}

func (m *mockThreadRepo) MarkRead(ctx context.Context, threadID, userID int64) (int, error) {
	if m.marked == nil {
		m.marked = make(map[int64]int)
	}
	m.marked[threadID]++
	return m.unread[threadID], nil
}

func (m *mockThreadRepo) UnreadCount(ctx context.Context, threadID, userID int64) (int, error) {
	return m.unread[threadID], nil
}

func (m *mockThreadRepo) UnreadSummary(ctx context.Context, userID int64) (*models.UnreadSummary, error) {
	summary := &models.UnreadSummary{}
	for id, count := range m.unread {
		if count > 0 {
			summary.Threads = append(summary.Threads, models.ThreadUnread{ThreadID: id, UnreadCount: count})
			summary.Total += count
		}
	}
	return summary, nil
}

type mockMessageNotifier struct {
	received [][3]int64
}

func (m *mockMessageNotifier) MessageReceived(threadID, messageID, senderID int64) {
	m.received = append(m.received, [3]int64{threadID, messageID, senderID})
}

func newThreadFixture() (*ThreadService, *mockThreadRepo, *mockMessageNotifier) {
	repo := &mockThreadRepo{
		threads:      make(map[int64]*models.Thread),
		participants: make(map[int64][]int64),
		oneToOne:     make(map[[2]int64]int64),
		unread:       make(map[int64]int),
	}
	users := &mockUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Role: models.RoleTeacher, Active: true},
		2: {ID: 2, Role: models.RoleParent, Active: true},
		3: {ID: 3, Role: models.RoleParent, Active: true},
		4: {ID: 4, Role: models.RoleParent, Active: false},
	}}
	notifier := &mockMessageNotifier{}
	return NewThreadService(repo, users, notifier, nil, nil), repo, notifier
}

func TestThreadServiceCreateDirectThread(t *testing.T) {
	svc, repo, notifier := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	thread, message, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2},
		IsOneToOne:   true,
		BodyMD:       "hello",
	})
	require.NoError(t, err)
	assert.True(t, thread.IsOneToOne)
	assert.Equal(t, "hello", message.BodyMD)
	assert.ElementsMatch(t, []int64{1, 2}, repo.participants[thread.ID])
	require.Len(t, notifier.received, 1)
	assert.Equal(t, thread.ID, notifier.received[0][0])
}

func TestThreadServiceCreateReusesExistingDirectThread(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	first, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2}, IsOneToOne: true, BodyMD: "hello",
	})
	require.NoError(t, err)

	second, msg, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2}, IsOneToOne: true, BodyMD: "again",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "again", msg.BodyMD)
	assert.Len(t, repo.threads, 1)
}

func TestThreadServiceCreateGroupThread(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	thread, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2, 3},
		BodyMD:       "meeting notes",
	})
	require.NoError(t, err)
	assert.False(t, thread.IsOneToOne)
	assert.ElementsMatch(t, []int64{1, 2, 3}, repo.participants[thread.ID])
}

func TestThreadServiceCreateTwoPersonGroupThread(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	direct, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2}, IsOneToOne: true, BodyMD: "hello",
	})
	require.NoError(t, err)

	group, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2}, BodyMD: "committee business",
	})
	require.NoError(t, err)
	assert.False(t, group.IsOneToOne)
	assert.NotEqual(t, direct.ID, group.ID)
	assert.ElementsMatch(t, []int64{1, 2}, repo.participants[group.ID])
}

func TestThreadServiceCreateDirectNeedsExactlyOneRecipient(t *testing.T) {
	svc, _, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	_, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2, 3},
		IsOneToOne:   true,
		BodyMD:       "hello",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadServiceCreateWithoutFirstMessage(t *testing.T) {
	svc, repo, notifier := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	thread, message, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{2, 3},
	})
	require.NoError(t, err)
	assert.Nil(t, message)
	assert.Empty(t, repo.messages)
	assert.Empty(t, notifier.received)
	assert.ElementsMatch(t, []int64{1, 2, 3}, repo.participants[thread.ID])
}

func TestThreadServiceCreateRejectsSelfOnly(t *testing.T) {
	svc, _, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	_, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{1},
		BodyMD:       "just me",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadServiceCreateRejectsInactiveRecipient(t *testing.T) {
	svc, _, _ := newThreadFixture()
	sender := &models.User{ID: 1, Role: models.RoleTeacher}

	_, _, err := svc.Create(context.Background(), sender, models.CreateThreadRequest{
		RecipientIDs: []int64{4},
		BodyMD:       "hello",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestThreadServiceGetNonParticipantForbidden(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	repo.threads[5] = &models.Thread{ID: 5}
	repo.participants[5] = []int64{1, 2}

	_, err := svc.Get(context.Background(), 3, 5)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestThreadServiceGetMissingThreadNotFound(t *testing.T) {
	svc, _, _ := newThreadFixture()

	_, err := svc.Get(context.Background(), 1, 99)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestThreadServiceMarkReadNonParticipantForbidden(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	repo.threads[5] = &models.Thread{ID: 5}
	repo.participants[5] = []int64{1, 2}

	_, err := svc.MarkRead(context.Background(), 3, 5)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
	assert.Zero(t, repo.marked[5])

	_, err = svc.MarkRead(context.Background(), 3, 99)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, appErrors.FromError(err).Status)
}

func TestThreadServiceSendNotifies(t *testing.T) {
	svc, repo, notifier := newThreadFixture()
	repo.threads[5] = &models.Thread{ID: 5}
	repo.participants[5] = []int64{1, 2}
	sender := &models.User{ID: 2, Role: models.RoleParent}

	message, err := svc.Send(context.Background(), sender, 5, models.SendMessageRequest{BodyMD: "pickup at 3"})
	require.NoError(t, err)
	require.Len(t, notifier.received, 1)
	assert.Equal(t, [3]int64{5, message.ID, 2}, notifier.received[0])
}

func TestThreadServiceMarkRead(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	repo.threads[5] = &models.Thread{ID: 5}
	repo.participants[5] = []int64{1, 2}
	repo.unread[5] = 3

	marked, err := svc.MarkRead(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, marked)
	assert.Equal(t, 1, repo.marked[5])
}

func TestThreadServiceUnreadSummary(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	repo.unread[5] = 2
	repo.unread[8] = 1

	summary, err := svc.Unread(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Len(t, summary.Threads, 2)
}

func TestThreadServiceUnreadSingleThread(t *testing.T) {
	svc, repo, _ := newThreadFixture()
	repo.threads[5] = &models.Thread{ID: 5}
	repo.participants[5] = []int64{1, 2}
	repo.unread[5] = 2
	repo.unread[8] = 1
	threadID := int64(5)

	summary, err := svc.Unread(context.Background(), 2, &threadID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	require.Len(t, summary.Threads, 1)
	assert.Equal(t, int64(5), summary.Threads[0].ThreadID)

	_, err = svc.Unread(context.Background(), 3, &threadID)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}
