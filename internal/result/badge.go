package result

// Badge is a cosmetic tier derived purely from the percentage score.
type Badge struct {
	Level       string `json:"level"`
	Description string `json:"description"`
}

// BadgeFor maps a percentage onto its tier.
func BadgeFor(percentage int) Badge {
	switch {
	case percentage >= 90:
		return Badge{Level: "Sang Proklamator", Description: "Melambangkan pemimpin dan pencetus kemerdekaan, level tertinggi"}
	case percentage >= 80:
		return Badge{Level: "Penjaga Negeri", Description: "Melambangkan mereka yang menjaga dan mempertahankan tanah air"}
	case percentage >= 70:
		return Badge{Level: "Pembela Rakyat", Description: "Tetap gigih, berjuang untuk rakyat"}
	case percentage >= 60:
		return Badge{Level: "Putra/Putri Nusantara", Description: "Identitas kebangsaan, semangat belajar terus"}
	case percentage >= 50:
		return Badge{Level: "Semangat Merdeka", Description: "Masih butuh belajar, tapi punya semangat juang"}
	default:
		return Badge{Level: "Api Perjuangan", Description: "Skor rendah, api kecil yang harus dipupuk agar jadi besar"}
	}
}
