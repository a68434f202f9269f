// Package domain defines the persistence models for quiz runs, users, and
// compatibility reports. These types are mapped with GORM and form the core
// data layer of the archetype backend.
package domain

import "time"

// Report and invite lifecycle states. Ready and Failed are terminal.
const (
	ReportStatusPending = "pending"
	ReportStatusReady   = "ready"
	ReportStatusFailed  = "failed"

	InviteStatusSent      = "sent"
	InviteStatusCompleted = "completed"
)

// User is an account reachable by at least one identity key (email, telegram
// handle, or Google subject). Each key is unique across all users; ambiguous
// matches across keys are rejected at registration time.
//
// CompatCredits is the consumable balance for compatibility reports and
// invites; it is clamped to be non-negative everywhere it is mutated.
// FullBonusAwarded records the one-time +3 credit grant attached to the full
// profile purchase so that replayed purchase calls cannot re-grant it.
type User struct {
	ID               uint       `json:"id"         gorm:"primaryKey;autoIncrement"`
	Email            *string    `json:"email"      gorm:"type:varchar(255);uniqueIndex"`
	Telegram         *string    `json:"telegram"   gorm:"type:varchar(255);uniqueIndex"`
	GoogleSub        *string    `json:"-"          gorm:"type:varchar(255);uniqueIndex"`
	Name             string     `json:"name"       gorm:"type:varchar(120);not null"`
	Lang             string     `json:"lang"       gorm:"type:varchar(5);not null"`
	AuthToken        string     `json:"-"          gorm:"type:varchar(64);uniqueIndex;not null"`
	HasFull          bool       `json:"has_full"   gorm:"not null;default:false"`
	FullBonusAwarded bool       `json:"-"          gorm:"not null;default:false"`
	PacksBought      int        `json:"packs_bought" gorm:"not null;default:0"`
	CompatCredits    int        `json:"compat_credits" gorm:"not null;default:0;check:compat_credits >= 0"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"-"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserResult is the one-per-user snapshot of the latest resolved archetype
// and generated profile text. It is overwritten whenever a new short or full
// analysis completes while the user is authenticated.
type UserResult struct {
	UserID     uint      `json:"user_id"     gorm:"primaryKey"`
	AnimalCode string    `json:"animal"      gorm:"type:varchar(30);not null"`
	Element    string    `json:"element"     gorm:"type:varchar(20);not null"`
	GenderForm string    `json:"gender_form" gorm:"type:varchar(20);not null"`
	ShortText  string    `json:"short_text"  gorm:"type:text;not null"`
	FullText   *string   `json:"full_text,omitempty" gorm:"type:text"`
	UpdatedAt  time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UserResult.
func (UserResult) TableName() string { return "user_results" }

// Run is one anonymous quiz attempt, identified by a client-or-server-chosen
// UUID. A run may exist without being tied to any user.
type Run struct {
	ID        string    `json:"id"     gorm:"type:char(36);primaryKey"`
	Name      string    `json:"name"   gorm:"type:varchar(80);not null"`
	Lang      string    `json:"lang"   gorm:"type:varchar(5);not null"`
	Gender    string    `json:"gender" gorm:"type:varchar(20);not null;default:'unspecified'"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Run.
func (Run) TableName() string { return "runs" }

// RunAnswer is a single questionId→answer pair belonging to a run. Answers
// are replaced wholesale (delete-then-insert) on resubmission.
type RunAnswer struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	RunID      string `gorm:"type:char(36);not null;index"`
	QuestionID int    `gorm:"not null"`
	Answer     string `gorm:"type:varchar(50);not null"`

	Run Run `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for RunAnswer.
func (RunAnswer) TableName() string { return "run_answers" }

// ShortResult stores the resolved triple and short profile text for a run,
// exactly one per run id.
type ShortResult struct {
	RunID      string `gorm:"type:char(36);primaryKey"`
	Animal     string `gorm:"type:varchar(30);not null"`
	Element    string `gorm:"type:varchar(20);not null"`
	GenderForm string `gorm:"type:varchar(20);not null"`
	Text       string `gorm:"type:text;not null"`

	Run Run `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ShortResult.
func (ShortResult) TableName() string { return "short_results" }

// FullResult stores the full profile text for a run, exactly one per run id.
type FullResult struct {
	RunID     string    `gorm:"type:char(36);primaryKey"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time

	Run Run `gorm:"foreignKey:RunID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for FullResult.
func (FullResult) TableName() string { return "full_results" }

// CompatReport is a generated compatibility report between an unordered pair
// of users. UserLowID < UserHighID always; the unique index on
// (user_low_id, user_high_id, prompt_version, language) is the actual
// serialization point for concurrent generation attempts, and the unique
// request id index provides client-retry deduplication.
type CompatReport struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	UserLowID     uint      `json:"-"  gorm:"not null;uniqueIndex:ux_report_pair,priority:1"`
	UserHighID    uint      `json:"-"  gorm:"not null;uniqueIndex:ux_report_pair,priority:2"`
	PromptVersion string    `json:"prompt_version" gorm:"type:varchar(120);not null;uniqueIndex:ux_report_pair,priority:3"`
	Language      string    `json:"lang" gorm:"type:varchar(5);not null;default:'ru';uniqueIndex:ux_report_pair,priority:4"`
	Status        string    `json:"status" gorm:"type:varchar(20);not null;check:status IN ('pending','ready','failed')"`
	Text          string    `json:"text"   gorm:"type:text;not null"`
	RequestID     *string   `json:"-"      gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt     time.Time `json:"created_at"`

	UserLow  User `json:"-" gorm:"foreignKey:UserLowID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	UserHigh User `json:"-" gorm:"foreignKey:UserHighID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CompatReport.
func (CompatReport) TableName() string { return "compat_reports" }

// OtherUserID returns the counterpart of userID within the pair.
func (r *CompatReport) OtherUserID(userID uint) uint {
	if r.UserLowID == userID {
		return r.UserHighID
	}
	return r.UserLowID
}

// Invite is a deferred compatibility request directed at a contact with no
// account yet. It transitions sent → completed exactly once; CreditSpent and
// CreditRefunded track the inviter's held credit.
type Invite struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Token          string    `json:"token" gorm:"type:varchar(64);uniqueIndex;not null"`
	InviterID      uint      `json:"-" gorm:"not null;index"`
	InviteeID      *uint     `json:"-"`
	PromptVersion  string    `json:"prompt_version" gorm:"type:varchar(120);not null"`
	CreditSpent    bool      `json:"-" gorm:"not null;default:false"`
	CreditRefunded bool      `json:"-" gorm:"not null;default:false"`
	Status         string    `json:"status" gorm:"type:varchar(20);not null;check:status IN ('sent','completed')"`
	RequestID      *string   `json:"-" gorm:"type:varchar(64);uniqueIndex"`
	CreatedAt      time.Time `json:"created_at"`

	Inviter User `json:"-" gorm:"foreignKey:InviterID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Invite.
func (Invite) TableName() string { return "invites" }

// PackPurchase is the idempotency record for a credit-pack purchase, keyed by
// the client-supplied request id. Replaying the same id returns the balance
// already computed instead of crediting twice.
type PackPurchase struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;index"`
	PackSize  int       `gorm:"not null"`
	RequestID string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for PackPurchase.
func (PackPurchase) TableName() string { return "pack_purchases" }
