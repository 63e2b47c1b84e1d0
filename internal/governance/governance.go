package governance

import (
	"context"
	"time"

	dealershipdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/dealership"
	governancedm "github.com/star4ce/star4ce-backend/internal/core/datamodel/governance"
	userdm "github.com/star4ce/star4ce-backend/internal/core/datamodel/user"
)

// Repository is the persistence surface for approvals and access requests.
type Repository interface {
	GetUserByID(id int64) (*userdm.User, error)
	UpdateUser(u *userdm.User) error
	DeleteUser(id int64) error
	ListPendingManagers(dealershipID int64) ([]userdm.User, error)

	GetDealershipByID(id int64) (*dealershipdm.Dealership, error)

	CreateAdminRequest(req *governancedm.AdminRequest) error
	GetAdminRequestByID(id int64) (*governancedm.AdminRequest, error)
	UpdateAdminRequest(req *governancedm.AdminRequest) error
	ListPendingAdminRequests(dealershipID int64) ([]governancedm.AdminRequest, error)

	CreateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error
	GetManagerDealershipRequestByID(id int64) (*governancedm.ManagerDealershipRequest, error)
	UpdateManagerDealershipRequest(req *governancedm.ManagerDealershipRequest) error
	ListPendingManagerDealershipRequests(dealershipID int64) ([]governancedm.ManagerDealershipRequest, error)

	CreateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error
	GetDealershipAccessRequestByID(id int64) (*governancedm.DealershipAccessRequest, error)
	UpdateDealershipAccessRequest(req *governancedm.DealershipAccessRequest) error
	ListPendingDealershipAccessRequests(dealershipID int64) ([]governancedm.DealershipAccessRequest, error)

	AssignCorporateDealership(assignment *userdm.CorporateDealership) error
	AccessibleDealershipIDs(userID int64) ([]int64, error)
}

type ServiceAPI interface {
	ApproveManager(ctx context.Context, actor *userdm.User, managerID int64) error
	RejectManager(ctx context.Context, actor *userdm.User, managerID int64) error
	ListPendingManagers(actor *userdm.User) ([]userdm.User, error)

	RequestManagerDealership(actor *userdm.User, dealershipID int64) (*governancedm.ManagerDealershipRequest, error)
	ResolveManagerDealershipRequest(actor *userdm.User, requestID int64, approve bool) error

	RequestDealershipAccess(actor *userdm.User, dealershipID int64, message string) (*governancedm.DealershipAccessRequest, error)
	ResolveDealershipAccessRequest(actor *userdm.User, requestID int64, approve bool) error

	RequestAdmin(actor *userdm.User, dealershipID int64, message string) (*governancedm.AdminRequest, error)
	ResolveAdminRequest(actor *userdm.User, requestID int64, approve bool) error

	AssignDealershipToCorporate(actor *userdm.User, corporateUserID, dealershipID int64) error
	AccessibleDealershipIDs(userID int64) ([]int64, error)
}

type RequestDTO struct {
	DealershipID int64  `json:"dealership_id"`
	Message      string `json:"message,omitempty"`
}

type ResolveDTO struct {
	Approve bool `json:"approve"`
}

type AssignDTO struct {
	UserID       int64 `json:"user_id"`
	DealershipID int64 `json:"dealership_id"`
}

type PendingManagerResponse struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	DealershipID *int64    `json:"dealership_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
