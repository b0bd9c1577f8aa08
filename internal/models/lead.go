package models

// Lead is a customer circuit record. Rows are loaded by an out-of-band
// import; the application only reads them.
type Lead struct {
	SrNo            string `json:"sr_no" gorm:"column:sr_no"`
	Ckt             string `json:"ckt" gorm:"column:ckt;primaryKey"`
	CustName        string `json:"cust_name" gorm:"column:cust_name;index"`
	Address         string `json:"address" gorm:"column:address"`
	EmailID         string `json:"email_id" gorm:"column:email_id"`
	ContactName     string `json:"contact_name" gorm:"column:contact_name"`
	CommDate        string `json:"comm_date" gorm:"column:comm_date"`
	PopName         string `json:"pop_name" gorm:"column:pop_name"`
	NasIP1          string `json:"nas_ip_1" gorm:"column:nas_ip_1"`
	SwitchIP1       string `json:"switch_ip_1" gorm:"column:switch_ip_1"`
	PortNo1         string `json:"port_no_1" gorm:"column:port_no_1"`
	VlanID1         string `json:"vlan_id_1" gorm:"column:vlan_id_1"`
	PrimaryPop      string `json:"primary_pop" gorm:"column:primary_pop"`
	PopName2        string `json:"pop_name_2" gorm:"column:pop_name_2"`
	NasIP2          string `json:"nas_ip_2" gorm:"column:nas_ip_2"`
	SwitchIP2       string `json:"switch_ip_2" gorm:"column:switch_ip_2"`
	PortNo2         string `json:"port_no_2" gorm:"column:port_no_2"`
	VlanID2         string `json:"vlan_id_2" gorm:"column:vlan_id_2"`
	Backup          string `json:"backup" gorm:"column:backup"`
	UsableIPAddress string `json:"usable_ip_address" gorm:"column:usable_ip_address"`
	SubnetMask      string `json:"subnet_mask" gorm:"column:subnet_mask"`
	Gateway         string `json:"gateway" gorm:"column:gateway"`
	Bandwidth       string `json:"bandwidth" gorm:"column:bandwidth"`
	SalesPerson     string `json:"sales_person" gorm:"column:sales_person"`
	TestingFE       string `json:"testing_fe" gorm:"column:testing_fe"`
	Device          string `json:"device" gorm:"column:device"`
	Remarks         string `json:"remarks" gorm:"column:remarks"`
	MRTG            string `json:"mrtg" gorm:"column:mrtg"`
}

func (Lead) TableName() string { return "lead_demo_data" }
