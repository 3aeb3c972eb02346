package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Participant struct {
	Address        string `gorm:"primary_key" json:"address"`
	Type           uint8  `json:"type"`
	TypeName       string `json:"type_name"`
	GovernorStatus uint8  `json:"governor_status"`
	KYCHash        string `json:"kyc_hash"`
	Height         uint64 `json:"height"`
	UpdatedHeight  uint64 `json:"updated_height"`
}

type Proposal struct {
	Id            uint64 `gorm:"primary_key;auto_increment:false" json:"id"`
	Kind          uint8  `json:"kind"`
	KindName      string `json:"kind_name"`
	Proposer      string `gorm:"index" json:"proposer"`
	Info          string `json:"info"`
	State         uint8  `gorm:"index" json:"state"`
	StateName     string `json:"state_name"`
	Deadline      int64  `json:"deadline"`
	ForWeight     uint64 `json:"for_weight"`
	AgainstWeight uint64 `json:"against_weight"`
	Height        uint64 `json:"height"`
	UpdatedHeight uint64 `json:"updated_height"`
}

// Vote is the latest vote of Voter on Proposal; a re-vote replaces it.
type Vote struct {
	Id       string `gorm:"primary_key" json:"-"`
	Proposal uint64 `gorm:"index" json:"proposal"`
	Voter    string `json:"voter"`
	Support  bool   `json:"support"`
	Weight   uint64 `json:"weight"`
	Height   uint64 `json:"height"`
}

type Thread struct {
	Address    string `gorm:"primary_key" json:"address"`
	Variant    uint8  `json:"variant"`
	Governor   string `gorm:"index" json:"governor"`
	ERC20      string `json:"erc20"`
	Descriptor string `json:"descriptor"`
	Crowdfund  string `json:"crowdfund"`
	Height     uint64 `json:"height"`
}

type Crowdfund struct {
	Address       string `gorm:"primary_key" json:"address"`
	Thread        string `json:"thread"`
	Governor      string `gorm:"index" json:"governor"`
	Token         string `json:"token"`
	Target        uint64 `json:"target"`
	Raised        uint64 `json:"raised"`
	State         uint8  `json:"state"`
	StateName     string `json:"state_name"`
	Height        uint64 `json:"height"`
	UpdatedHeight uint64 `json:"updated_height"`
}

type Contribution struct {
	Id        string `gorm:"primary_key" json:"-"`
	Crowdfund string `gorm:"index" json:"crowdfund"`
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
}

type Bond struct {
	Governor string `gorm:"primary_key" json:"governor"`
	Amount   uint64 `json:"amount"`
	Slashed  uint64 `json:"slashed"`
}

type Distribution struct {
	Id      uint64 `gorm:"primary_key;auto_increment:false" json:"id"`
	Token   string `json:"token"`
	Amount  uint64 `json:"amount"`
	Claimed uint64 `json:"claimed"`
	Height  uint64 `json:"height"`
}

var models = []interface{}{
	&Height{}, &Participant{}, &Proposal{}, &Vote{}, &Thread{},
	&Crowdfund{}, &Contribution{}, &Bond{}, &Distribution{},
}
