package devserver

import (
	"context"
	"time"

	"postsync/internal/models"

	"gorm.io/gorm"
)

// PostRecord is a stored post of the development collection.
type PostRecord struct {
	ID              uint      `gorm:"primaryKey"`
	Username        string    `gorm:"size:64;not null"`
	Title           string    `gorm:"size:255;not null"`
	Content         string    `gorm:"type:text;not null"`
	ImageURL        string    `gorm:"type:text"`
	CreatedDatetime time.Time `gorm:"index;not null"`
}

func (PostRecord) TableName() string { return "careers_posts" }

// ToRemote renders the record the way the collection API returns it.
func (r PostRecord) ToRemote() models.RemotePost {
	return models.RemotePost{
		ID:              int(r.ID),
		Username:        r.Username,
		CreatedDatetime: r.CreatedDatetime.UTC().Format(time.RFC3339Nano),
		Title:           r.Title,
		Content:         r.Content,
		ImageURL:        r.ImageURL,
	}
}

// PostPatch holds the fields of a partial update. Nil fields are left alone.
type PostPatch struct {
	Title    *string
	Content  *string
	ImageURL *string
}

// PostRepository defines the data operations of the development collection.
type PostRepository interface {
	List(ctx context.Context, limit, offset int) ([]PostRecord, int64, error)
	Create(ctx context.Context, post *PostRecord) error
	Update(ctx context.Context, id uint, patch PostPatch) (*PostRecord, error)
	Delete(ctx context.Context, id uint) error
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a gorm backed PostRepository.
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// List returns one page, newest first, and the total number of posts.
func (r *postRepository) List(ctx context.Context, limit, offset int) ([]PostRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PostRecord{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []PostRecord
	err := r.db.WithContext(ctx).
		Order("created_datetime DESC").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *postRepository) Create(ctx context.Context, post *PostRecord) error {
	if post.CreatedDatetime.IsZero() {
		post.CreatedDatetime = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(post).Error
}

// Update applies patch and returns the updated record, or gorm.ErrRecordNotFound.
func (r *postRepository) Update(ctx context.Context, id uint, patch PostPatch) (*PostRecord, error) {
	var post PostRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if patch.Title != nil {
			updates["title"] = *patch.Title
		}
		if patch.Content != nil {
			updates["content"] = *patch.Content
		}
		if patch.ImageURL != nil {
			updates["image_url"] = *patch.ImageURL
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&post).Updates(updates).Error; err != nil {
			return err
		}
		return tx.First(&post, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// Delete removes a record, or returns gorm.ErrRecordNotFound.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&PostRecord{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
