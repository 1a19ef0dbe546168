package comment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell/internal/domain/apperr"
	domainComment "inkwell/internal/domain/comment"
	"inkwell/internal/domain/post"
	"inkwell/internal/domain/repository"
	"inkwell/internal/infra/memory"
)

type stubMetrics struct {
	createdRoot, createdReply int
	deleted                   int
}

func (m *stubMetrics) CommentCreated(root bool) {
	if root {
		m.createdRoot++
		return
	}
	m.createdReply++
}

func (m *stubMetrics) CommentsDeleted(root bool, n int) { m.deleted += n }

// countingComments fails the test when any storage call is made.
type countingComments struct {
	repository.CommentRepository
	calls int
}

func (c *countingComments) Get(ctx context.Context, id domainComment.ID) (*domainComment.Comment, error) {
	c.calls++
	return c.CommentRepository.Get(ctx, id)
}

func (c *countingComments) Create(ctx context.Context, cm *domainComment.Comment) error {
	c.calls++
	return c.CommentRepository.Create(ctx, cm)
}

type fixture struct {
	store   *memory.Store
	svc     *Service
	metrics *stubMetrics
	post    *post.Post
}

func newFixture(t *testing.T, policy ReplyPolicy) *fixture {
	t.Helper()
	store := memory.New()
	p, err := post.New(post.Params{
		ID:       uuid.New(),
		AuthorID: uuid.New(),
		Title:    "Hello",
		Body:     "<p>world</p>",
		Category: "general",
	})
	require.NoError(t, err)
	require.NoError(t, store.Posts().Create(context.Background(), p))

	m := &stubMetrics{}
	return &fixture{
		store:   store,
		svc:     NewService(store.Comments(), store.Posts(), policy, m, nil),
		metrics: m,
		post:    p,
	}
}

func TestParseReplyPolicy(t *testing.T) {
	p, err := ParseReplyPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ReplyPolicyRootOnly, p)

	p, err = ParseReplyPolicy("tolerant")
	require.NoError(t, err)
	assert.Equal(t, ReplyPolicyTolerant, p)

	_, err = ParseReplyPolicy("deep")
	require.Error(t, err)
}

func TestService_ListTreeEmptyAndMissingPost(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Equal(t, f.post.ID, tree.PostID)
	assert.Empty(t, tree.Comments)
	assert.Zero(t, tree.Total)

	_, err = f.svc.ListTree(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_CreateAndListTree(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, alice, "first!")
	require.NoError(t, err)
	assert.True(t, root.IsRoot())

	reply, err := f.svc.CreateReply(ctx, f.post.ID, bob, "welcome", root.ID)
	require.NoError(t, err)
	require.NotNil(t, reply.ParentID)
	assert.Equal(t, root.ID, *reply.ParentID)

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, tree.Comments, 1)
	assert.Equal(t, root.ID, tree.Comments[0].Comment.ID)
	require.Len(t, tree.Comments[0].Replies, 1)
	assert.Equal(t, reply.ID, tree.Comments[0].Replies[0].Comment.ID)
	assert.Equal(t, 2, tree.Total)

	assert.Equal(t, 1, f.metrics.createdRoot)
	assert.Equal(t, 1, f.metrics.createdReply)
}

func TestService_CreateSanitisesContent(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)

	c, err := f.svc.CreateRootComment(context.Background(), f.post.ID, uuid.New(), `<b>hi</b><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b>", c.Content)
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	author := uuid.New()

	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"markup only", "<script>alert(1)</script>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateRootComment(ctx, f.post.ID, author, tt.content)
			require.ErrorIs(t, err, apperr.ErrValidation)
		})
	}

	_, err := f.svc.CreateRootComment(ctx, uuid.New(), author, "hello")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.CreateReply(ctx, f.post.ID, author, "hello", uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Zero(t, tree.Total)
}

func TestService_UnauthorizedBeforeStorage(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	counting := &countingComments{CommentRepository: f.store.Comments()}
	svc := NewService(counting, f.store.Posts(), ReplyPolicyRootOnly, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateRootComment(ctx, f.post.ID, uuid.Nil, "hello")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.CreateReply(ctx, f.post.ID, uuid.Nil, "hello", uuid.New())
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.EditComment(ctx, uuid.New(), uuid.Nil, "hello")
	require.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = svc.DeleteComment(ctx, uuid.New(), uuid.Nil)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	assert.Zero(t, counting.calls)
}

func TestService_ReplyPolicyRootOnly(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	author := uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, author, "root")
	require.NoError(t, err)
	reply, err := f.svc.CreateReply(ctx, f.post.ID, author, "reply", root.ID)
	require.NoError(t, err)

	_, err = f.svc.CreateReply(ctx, f.post.ID, author, "deeper", reply.ID)
	require.ErrorIs(t, err, apperr.ErrValidation)

	other, err := post.New(post.Params{ID: uuid.New(), AuthorID: author, Title: "Other", Body: "b", Category: "c"})
	require.NoError(t, err)
	require.NoError(t, f.store.Posts().Create(ctx, other))
	_, err = f.svc.CreateReply(ctx, other.ID, author, "cross", root.ID)
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestService_ReplyPolicyTolerant(t *testing.T) {
	f := newFixture(t, ReplyPolicyTolerant)
	ctx := context.Background()
	author := uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, author, "root")
	require.NoError(t, err)
	reply, err := f.svc.CreateReply(ctx, f.post.ID, author, "reply", root.ID)
	require.NoError(t, err)
	deeper, err := f.svc.CreateReply(ctx, f.post.ID, author, "deeper", reply.ID)
	require.NoError(t, err)

	stored, err := f.store.Comments().Get(ctx, deeper.ID)
	require.NoError(t, err)
	assert.Equal(t, reply.ID, *stored.ParentID)

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, tree.Comments, 1)
	require.Len(t, tree.Comments[0].Replies, 1)
	assert.Empty(t, tree.Comments[0].Replies[0].Replies)
	assert.Equal(t, 2, tree.Total)
}

func TestService_EditComment(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	author, stranger := uuid.New(), uuid.New()

	c, err := f.svc.CreateRootComment(ctx, f.post.ID, author, "typo")
	require.NoError(t, err)

	_, err = f.svc.EditComment(ctx, c.ID, stranger, "hijack")
	require.ErrorIs(t, err, apperr.ErrForbidden)
	stored, err := f.store.Comments().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "typo", stored.Content)

	_, err = f.svc.EditComment(ctx, c.ID, author, "  ")
	require.ErrorIs(t, err, apperr.ErrValidation)
	stored, err = f.store.Comments().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "typo", stored.Content)
	assert.True(t, c.UpdatedAt.Equal(stored.UpdatedAt))

	_, err = f.svc.EditComment(ctx, uuid.New(), author, "x")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	time.Sleep(time.Millisecond)
	edited, err := f.svc.EditComment(ctx, c.ID, author, "fixed")
	require.NoError(t, err)
	assert.Equal(t, "fixed", edited.Content)
	assert.Equal(t, c.ID, edited.ID)
	assert.Equal(t, c.AuthorID, edited.AuthorID)
	assert.Equal(t, c.ParentID, edited.ParentID)
	assert.True(t, c.CreatedAt.Equal(edited.CreatedAt))
	assert.False(t, edited.UpdatedAt.Before(c.UpdatedAt))
}

func TestService_DeleteRootCascades(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	author := uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, author, "root")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.svc.CreateReply(ctx, f.post.ID, uuid.New(), "reply", root.ID)
		require.NoError(t, err)
	}
	keep, err := f.svc.CreateRootComment(ctx, f.post.ID, uuid.New(), "other")
	require.NoError(t, err)

	_, err = f.svc.DeleteComment(ctx, root.ID, uuid.New())
	require.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.svc.DeleteComment(ctx, root.ID, author)
	require.NoError(t, err)
	assert.True(t, res.Root)
	assert.Equal(t, 4, res.Removed)
	assert.Equal(t, f.post.ID, res.PostID)
	assert.Equal(t, 4, f.metrics.deleted)

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, tree.Comments, 1)
	assert.Equal(t, keep.ID, tree.Comments[0].Comment.ID)

	_, err = f.svc.DeleteComment(ctx, root.ID, author)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestService_DeleteReplyOnly(t *testing.T) {
	f := newFixture(t, ReplyPolicyRootOnly)
	ctx := context.Background()
	author := uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, uuid.New(), "root")
	require.NoError(t, err)
	reply, err := f.svc.CreateReply(ctx, f.post.ID, author, "mine", root.ID)
	require.NoError(t, err)
	sibling, err := f.svc.CreateReply(ctx, f.post.ID, uuid.New(), "theirs", root.ID)
	require.NoError(t, err)

	res, err := f.svc.DeleteComment(ctx, reply.ID, author)
	require.NoError(t, err)
	assert.False(t, res.Root)
	assert.Equal(t, 1, res.Removed)

	tree, err := f.svc.ListTree(ctx, f.post.ID)
	require.NoError(t, err)
	require.Len(t, tree.Comments, 1)
	require.Len(t, tree.Comments[0].Replies, 1)
	assert.Equal(t, sibling.ID, tree.Comments[0].Replies[0].Comment.ID)
}

func TestService_DeleteTolerantRemovesNestedReplies(t *testing.T) {
	f := newFixture(t, ReplyPolicyTolerant)
	ctx := context.Background()
	author := uuid.New()

	root, err := f.svc.CreateRootComment(ctx, f.post.ID, author, "root")
	require.NoError(t, err)
	reply, err := f.svc.CreateReply(ctx, f.post.ID, author, "reply", root.ID)
	require.NoError(t, err)
	nested, err := f.svc.CreateReply(ctx, f.post.ID, author, "nested", reply.ID)
	require.NoError(t, err)

	res, err := f.svc.DeleteComment(ctx, reply.ID, author)
	require.NoError(t, err)
	assert.False(t, res.Root)
	assert.Equal(t, 2, res.Removed)
	_, err = f.store.Comments().Get(ctx, nested.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	reply2, err := f.svc.CreateReply(ctx, f.post.ID, author, "reply", root.ID)
	require.NoError(t, err)
	nested2, err := f.svc.CreateReply(ctx, f.post.ID, author, "nested", reply2.ID)
	require.NoError(t, err)

	res, err = f.svc.DeleteComment(ctx, root.ID, author)
	require.NoError(t, err)
	assert.True(t, res.Root)
	assert.Equal(t, 3, res.Removed)
	assert.Equal(t, 5, f.metrics.deleted)

	all, err := f.store.Comments().ListByPost(ctx, f.post.ID)
	require.NoError(t, err)
	assert.Empty(t, all)
	_, err = f.store.Comments().Get(ctx, nested2.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
