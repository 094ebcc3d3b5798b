package model

type UserData struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
}

type UserInfo struct {
	Status string    `json:"status"`
	Msg    string    `json:"msg"`
	Data   *UserData `json:"data"`
}
