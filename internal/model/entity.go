package model

// Entity is implemented by every table row type.
type Entity interface {
	// Key returns the row's identifier (PendingID if not yet assigned).
	Key() ID
}

// Role is a user's access level.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleNormal Role = "NORMAL"
)

// UnmarshalJSON accepts any scalar cell.
func (r *Role) UnmarshalJSON(data []byte) error {
	var t Text
	if err := t.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = Role(t)
	return nil
}

// Yes/No column values used by Active, Finalized and PwD.
const (
	Yes = "Yes"
	No  = "No"
)

// DeactivationReasons lists the reason codes accepted for inactive employees.
var DeactivationReasons = []string{"Transfer", "Death", "Resign", "Debarred"}

// User is an operator of the system.
type User struct {
	UserID    ID     `json:"User_ID"`
	UserName  Text   `json:"User_Name,omitempty"`
	UserType  Role   `json:"User_Type,omitempty"`
	CreatedAt Text   `json:"Created_At,omitempty"`
	UpdatedAt Text   `json:"Updated_At,omitempty"`
	Extra     Fields `json:"-"`
}

func (u User) Key() ID { return u.UserID }

func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	return marshalRecord(plain(u), u.Extra)
}

func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*u = User(p)
	u.Extra = extra
	return nil
}

// Department groups offices.
type Department struct {
	DepartmentID   ID     `json:"Department_ID"`
	DepartmentName Text   `json:"Department_Name,omitempty"`
	Extra          Fields `json:"-"`
}

func (d Department) Key() ID { return d.DepartmentID }

func (d Department) MarshalJSON() ([]byte, error) {
	type plain Department
	return marshalRecord(plain(d), d.Extra)
}

func (d *Department) UnmarshalJSON(data []byte) error {
	type plain Department
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*d = Department(p)
	d.Extra = extra
	return nil
}

// Office belongs to a department and is looked after by a custodian user.
type Office struct {
	OfficeID     ID     `json:"Office_ID"`
	OfficeName   Text   `json:"Office_Name,omitempty"`
	DepartmentID ID     `json:"Department_ID"`
	UserID       ID     `json:"User_ID"`
	Finalized    Text   `json:"Finalized,omitempty"`
	Extra        Fields `json:"-"`
}

func (o Office) Key() ID { return o.OfficeID }

// IsFinalized reports whether the office's records are locked.
func (o Office) IsFinalized() bool { return o.Finalized == Yes }

func (o Office) MarshalJSON() ([]byte, error) {
	type plain Office
	return marshalRecord(plain(o), o.Extra)
}

func (o *Office) UnmarshalJSON(data []byte) error {
	type plain Office
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*o = Office(p)
	o.Extra = extra
	return nil
}

// Bank is a bank master record.
type Bank struct {
	BankID   ID     `json:"Bank_ID"`
	BankName Text   `json:"Bank_Name,omitempty"`
	Extra    Fields `json:"-"`
}

func (b Bank) Key() ID { return b.BankID }

func (b Bank) MarshalJSON() ([]byte, error) {
	type plain Bank
	return marshalRecord(plain(b), b.Extra)
}

func (b *Bank) UnmarshalJSON(data []byte) error {
	type plain Bank
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*b = Bank(p)
	b.Extra = extra
	return nil
}

// BankBranch is a branch of a Bank.
type BankBranch struct {
	BranchID   ID     `json:"Branch_ID"`
	BranchName Text   `json:"Branch_Name,omitempty"`
	BankID     ID     `json:"Bank_ID"`
	IFSCCode   Text   `json:"IFSC_Code,omitempty"`
	Extra      Fields `json:"-"`
}

func (b BankBranch) Key() ID { return b.BranchID }

func (b BankBranch) MarshalJSON() ([]byte, error) {
	type plain BankBranch
	return marshalRecord(plain(b), b.Extra)
}

func (b *BankBranch) UnmarshalJSON(data []byte) error {
	type plain BankBranch
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*b = BankBranch(p)
	b.Extra = extra
	return nil
}

// Post is a job position.
type Post struct {
	PostID   ID     `json:"Post_ID"`
	PostName Text   `json:"Post_Name,omitempty"`
	Extra    Fields `json:"-"`
}

func (p Post) Key() ID { return p.PostID }

func (p Post) MarshalJSON() ([]byte, error) {
	type plain Post
	return marshalRecord(plain(p), p.Extra)
}

func (p *Post) UnmarshalJSON(data []byte) error {
	type plain Post
	var q plain
	extra, err := unmarshalRecord(data, &q)
	if err != nil {
		return err
	}
	*p = Post(q)
	p.Extra = extra
	return nil
}

// Payscale is a pay band.
type Payscale struct {
	PayID   ID     `json:"Pay_ID"`
	PayName Text   `json:"Pay_Name,omitempty"`
	Extra   Fields `json:"-"`
}

func (p Payscale) Key() ID { return p.PayID }

func (p Payscale) MarshalJSON() ([]byte, error) {
	type plain Payscale
	return marshalRecord(plain(p), p.Extra)
}

func (p *Payscale) UnmarshalJSON(data []byte) error {
	type plain Payscale
	var q plain
	extra, err := unmarshalRecord(data, &q)
	if err != nil {
		return err
	}
	*p = Payscale(q)
	p.Extra = extra
	return nil
}

// Employee is the aggregate employee record.
//
// When Active is No, DAReason holds the deactivation reason code and DADoc a
// reference to the justification document.
type Employee struct {
	EmployeeID      ID     `json:"Employee_ID"`
	EmployeeName    Text   `json:"Employee_Name,omitempty"`
	EmployeeSurname Text   `json:"Employee_Surname,omitempty"`
	Gender          Text   `json:"Gender,omitempty"`
	DOB             Text   `json:"DOB,omitempty"`
	Mobile          Text   `json:"Mobile,omitempty"`
	EPIC            Text   `json:"EPIC,omitempty"`
	PwD             Text   `json:"PwD,omitempty"`
	DepartmentID    ID     `json:"Department_ID"`
	OfficeID        ID     `json:"Office_ID"`
	PostID          ID     `json:"Post_ID"`
	PayID           ID     `json:"Pay_ID"`
	ServiceType     Text   `json:"Service_Type,omitempty"`
	AccountNo       ID     `json:"ACC_No"`
	BankID          ID     `json:"Bank_ID"`
	BranchID        ID     `json:"Branch_ID"`
	IFSCCode        Text   `json:"IFSC_Code,omitempty"`
	Active          Text   `json:"Active,omitempty"`
	DAReason        Text   `json:"DA_Reason,omitempty"`
	DADoc           Text   `json:"DA_Doc,omitempty"`
	Photo           Text   `json:"Photo,omitempty"`
	Extra           Fields `json:"-"`
}

func (e Employee) Key() ID { return e.EmployeeID }

// IsActive reports whether the employee is active. A blank Active column
// counts as active.
func (e Employee) IsActive() bool { return e.Active != No }

func (e Employee) MarshalJSON() ([]byte, error) {
	type plain Employee
	return marshalRecord(plain(e), e.Extra)
}

func (e *Employee) UnmarshalJSON(data []byte) error {
	type plain Employee
	var p plain
	extra, err := unmarshalRecord(data, &p)
	if err != nil {
		return err
	}
	*e = Employee(p)
	e.Extra = extra
	return nil
}
