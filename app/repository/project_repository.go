package repository

import (
	"github.com/launchstack/launchstack/app/models"
	"gorm.io/gorm"
)

// projectRepository implements the ProjectRepository interface
type projectRepository struct {
	db *gorm.DB
}

// NewProjectRepository creates a new project repository instance
func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

// Create creates a new project in the database
func (r *projectRepository) Create(project *models.Project) error {
	return r.db.Create(project).Error
}

// GetByID retrieves a project by its ID
func (r *projectRepository) GetByID(id uint) (*models.Project, error) {
	var project models.Project
	err := r.db.First(&project, id).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByUUID retrieves a project by its public identifier
func (r *projectRepository) GetByUUID(uuid string) (*models.Project, error) {
	var project models.Project
	err := r.db.Where("uuid = ?", uuid).First(&project).Error
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// GetByUserID retrieves a user's projects with pagination
func (r *projectRepository) GetByUserID(userID uint, offset, limit int) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.Where("user_id = ?", userID).Offset(offset).Limit(limit).
		Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// Update updates an existing project
func (r *projectRepository) Update(project *models.Project) error {
	return r.db.Save(project).Error
}

// Delete removes a project and its variations
func (r *projectRepository) Delete(id uint) error {
	if err := r.db.Where("project_id = ?", id).Delete(&models.ProjectVariation{}).Error; err != nil {
		return err
	}
	return r.db.Delete(&models.Project{}, id).Error
}

// List retrieves a paginated list of all projects
func (r *projectRepository) List(offset, limit int) ([]models.Project, error) {
	var projects []models.Project
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&projects).Error
	return projects, err
}

// Count returns the total number of projects
func (r *projectRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Project{}).Count(&count).Error
	return count, err
}

// CountByUserID returns the number of projects owned by a user
func (r *projectRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Project{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// DeleteByUserID removes all projects owned by a user
func (r *projectRepository) DeleteByUserID(userID uint) error {
	var projects []models.Project
	if err := r.db.Where("user_id = ?", userID).Find(&projects).Error; err != nil {
		return err
	}
	for _, p := range projects {
		if err := r.Delete(p.ID); err != nil {
			return err
		}
	}
	return nil
}

// GetVariations lists the variations attached to a project in creation order
func (r *projectRepository) GetVariations(projectID uint) ([]models.ProjectVariation, error) {
	var variations []models.ProjectVariation
	err := r.db.Where("project_id = ?", projectID).Order("created_at ASC").Find(&variations).Error
	return variations, err
}

// CreateVariation attaches a new variation to a project
func (r *projectRepository) CreateVariation(variation *models.ProjectVariation) error {
	return r.db.Create(variation).Error
}

// DeleteVariation removes a single variation
func (r *projectRepository) DeleteVariation(id uint) error {
	return r.db.Delete(&models.ProjectVariation{}, id).Error
}
