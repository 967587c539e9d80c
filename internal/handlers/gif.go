package handlers

// transparentGIF is a 1x1 transparent GIF89a.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00, 0x00,
	0x00, 0x00, 0x00, 0xff, 0xff, 0xff,
	0x21, 0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00,
	0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00,
	0x02, 0x02, 0x44, 0x01, 0x00,
	0x3b,
}

// PixelResponse is an uncacheable 1x1 GIF. Pixel endpoints always answer with it.
type PixelResponse struct {
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

func newPixelResponse() *PixelResponse {
	return &PixelResponse{
		ContentType:  "image/gif",
		CacheControl: "no-store, no-cache, must-revalidate, max-age=0",
		Body:         transparentGIF,
	}
}
