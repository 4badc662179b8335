// Package posts implements the public archive and the admin CRUD of blog
// posts on top of the JSON record store.
package posts

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ayush/flatblog/internal/archive"
	"github.com/ayush/flatblog/internal/logging"
	"github.com/ayush/flatblog/internal/models"
	"github.com/ayush/flatblog/internal/store"
	"github.com/ayush/flatblog/internal/validation"
)

// PublishedAtLayout is the layout of the published_at form field.
const PublishedAtLayout = "2006-01-02T15:04"

var (
	ErrPostNotFound = errors.New("post not found")
	ErrStorage      = store.ErrWriteFailed
)

// ImageStore stores and removes post images.
type ImageStore interface {
	HandleImageUpload(ctx context.Context, file multipart.File, header *multipart.FileHeader, title string) (string, error)
	Remove(ctx context.Context, publicPath string) error
}

// Image is an uploaded file from a create or edit form.
type Image struct {
	File   multipart.File
	Header *multipart.FileHeader
}

// ArchiveView is the public listing: posts oldest first plus the sidebar
// histograms and calendar.
type ArchiveView struct {
	Posts         []models.Post    `json:"posts"`
	PostsByDay    archive.Counts   `json:"posts_by_day"`
	PostsByMonth  archive.Counts   `json:"posts_by_month"`
	Calendar      archive.Calendar `json:"calendar"`
	SelectedDate  *string          `json:"selected_date"`
	SelectedMonth string           `json:"selected_month"`
}

// AdminView is the admin listing, newest first.
type AdminView struct {
	Posts    []models.Post `json:"posts"`
	Warnings []string      `json:"warnings"`
}

type Service struct {
	store  *store.RecordStore
	images ImageStore
	loc    *time.Location
	now    func() time.Time
}

func NewService(s *store.RecordStore, images ImageStore, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: s, images: images, loc: loc, now: time.Now}
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc)
}

// Archive builds the public view. date narrows the post list when it is a
// valid YYYY-MM-DD; month picks the calendar page and defaults to the
// current month.
func (s *Service) Archive(date, month string) ArchiveView {
	now := s.clock()
	all := archive.SortPosts(s.store.LoadPosts(), "asc", s.loc)

	view := ArchiveView{Posts: all}
	if selected, ok := archive.DateFilter(date, s.loc); ok {
		view.SelectedDate = &selected
		view.Posts = archive.FilterByDate(all, selected, s.loc)
	}

	view.SelectedMonth = archive.MonthFilter(month, now)
	view.PostsByDay = archive.PostsByDay(all, now)
	view.PostsByMonth = archive.PostsByMonth(all, now)
	view.Calendar = archive.CalendarMatrix(view.SelectedMonth, view.PostsByDay.Map(), now)
	return view
}

// AdminList returns every post newest first together with storage warnings.
func (s *Service) AdminList() AdminView {
	warnings := s.store.Warnings()
	if warnings == nil {
		warnings = []string{}
	}
	return AdminView{
		Posts:    archive.SortPosts(s.store.LoadPosts(), "desc", s.loc),
		Warnings: warnings,
	}
}

// Get returns the post with the given id.
func (s *Service) Get(id string) (*models.Post, error) {
	posts := s.store.LoadPosts()
	i := indexOf(posts, id)
	if i < 0 {
		return nil, ErrPostNotFound
	}
	return &posts[i], nil
}

func indexOf(posts []models.Post, id string) int {
	for i := range posts {
		if posts[i].ID == id {
			return i
		}
	}
	return -1
}

func normalizeForm(form models.PostForm) models.PostForm {
	form.Title = strings.TrimSpace(form.Title)
	form.Content = strings.TrimSpace(form.Content)
	form.PublishedAt = strings.TrimSpace(form.PublishedAt)
	return form
}

func validateForm(form models.PostForm) *validation.FormError {
	fe := validation.ValidateStruct(form)
	if fe == nil {
		fe = &validation.FormError{}
	}
	return fe
}

// parsePublishedAt converts the form value to the stored layout. ok is false
// for a non-empty value that does not match PublishedAtLayout.
func (s *Service) parsePublishedAt(value string) (string, bool) {
	t, err := time.ParseInLocation(PublishedAtLayout, value, s.loc)
	if err != nil {
		return "", false
	}
	return models.FormatTimestamp(t), true
}

// Create validates form, stores the image and appends a new post. The image
// is mandatory.
func (s *Service) Create(ctx context.Context, form models.PostForm, img *Image) (*models.Post, error) {
	form = normalizeForm(form)
	fe := validateForm(form)
	if img == nil {
		fe.Add("The article image is required.")
	}

	publishedAt := models.FormatTimestamp(s.clock())
	if form.PublishedAt != "" {
		parsed, ok := s.parsePublishedAt(form.PublishedAt)
		if ok {
			publishedAt = parsed
		} else {
			fe.Add("Invalid publication date.")
		}
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	imagePath, err := s.images.HandleImageUpload(ctx, img.File, img.Header, form.Title)
	if err != nil {
		return nil, err
	}

	post := models.Post{
		ID:          uuid.NewString(),
		Title:       form.Title,
		Content:     form.Content,
		ImagePath:   imagePath,
		PublishedAt: publishedAt,
		CreatedAt:   models.FormatTimestamp(s.clock()),
	}
	posts := append(s.store.LoadPosts(), post)
	if !s.store.SavePosts(posts) {
		s.removeImage(ctx, imagePath)
		return nil, ErrStorage
	}
	logging.Ctx(ctx).Info().Str("post_id", post.ID).Msg("post created")
	return &post, nil
}

// Update edits the post in place. An empty published_at keeps the current
// value; a new image replaces the old file once the post list is saved.
func (s *Service) Update(ctx context.Context, id string, form models.PostForm, img *Image) (*models.Post, error) {
	posts := s.store.LoadPosts()
	i := indexOf(posts, id)
	if i < 0 {
		return nil, ErrPostNotFound
	}

	form = normalizeForm(form)
	fe := validateForm(form)
	publishedAt := posts[i].PublishedAt
	if form.PublishedAt != "" {
		parsed, ok := s.parsePublishedAt(form.PublishedAt)
		if ok {
			publishedAt = parsed
		} else {
			fe.Add("Invalid publication date.")
		}
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	oldImage := posts[i].ImagePath
	newImage := ""
	if img != nil {
		path, err := s.images.HandleImageUpload(ctx, img.File, img.Header, form.Title)
		if err != nil {
			return nil, err
		}
		newImage = path
		posts[i].ImagePath = path
	}

	posts[i].Title = form.Title
	posts[i].Content = form.Content
	posts[i].PublishedAt = publishedAt

	if !s.store.SavePosts(posts) {
		s.removeImage(ctx, newImage)
		return nil, ErrStorage
	}
	if newImage != "" && oldImage != newImage {
		s.removeImage(ctx, oldImage)
	}
	logging.Ctx(ctx).Info().Str("post_id", id).Msg("post updated")
	updated := posts[i]
	return &updated, nil
}

// Delete removes the post and, after the list is saved, its image.
func (s *Service) Delete(ctx context.Context, id string) error {
	posts := s.store.LoadPosts()
	i := indexOf(posts, id)
	if i < 0 {
		return ErrPostNotFound
	}
	removed := posts[i]
	posts = append(posts[:i], posts[i+1:]...)

	if !s.store.SavePosts(posts) {
		return ErrStorage
	}
	s.removeImage(ctx, removed.ImagePath)
	logging.Ctx(ctx).Info().Str("post_id", id).Msg("post deleted")
	return nil
}

func (s *Service) removeImage(ctx context.Context, publicPath string) {
	if publicPath == "" {
		return
	}
	if err := s.images.Remove(ctx, publicPath); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("image", publicPath).Msg("image remove failed")
	}
}
