package repository

import (
	"gorm.io/gorm"

	"github.com/classquest/classquest/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := r.db.Where("username = ?", username).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user.
func (r *UserRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// List retrieves users, optionally filtered by class and role.
func (r *UserRepository) List(classID, role string) ([]models.User, error) {
	query := r.db.Model(&models.User{})
	if classID != "" {
		query = query.Where("class_id = ?", classID)
	}
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []models.User
	err := query.Order("username ASC").Find(&users).Error
	return users, err
}

// AddPoints atomically adds points to a user's running total.
func (r *UserRepository) AddPoints(userID uint, points int) error {
	return r.db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("total_points", gorm.Expr("total_points + ?", points)).Error
}
