package repositories

import (
	"errors"

	"stitchhub_backend/internal/models"

	"gorm.io/gorm"
)

var ErrCourseNotFound = errors.New("course not found")

type CourseRepository interface {
	FindByID(id string) (*models.Course, error)
	FindActive() ([]models.Course, error)
	Create(course *models.Course) error
}

type CourseRepositoryImpl struct {
	db *gorm.DB
}

func NewCourseRepository(db *gorm.DB) CourseRepository {
	return &CourseRepositoryImpl{db: db}
}

func (r *CourseRepositoryImpl) FindByID(id string) (*models.Course, error) {
	var course models.Course
	err := r.db.First(&course, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepositoryImpl) FindActive() ([]models.Course, error) {
	var courses []models.Course
	err := r.db.Where("is_active = ?", true).Order("title ASC").Find(&courses).Error
	return courses, err
}

func (r *CourseRepositoryImpl) Create(course *models.Course) error {
	return r.db.Create(course).Error
}
