package tui

import "os"

func writeTestFile(path string) error {
	return os.WriteFile(path, []byte("Product ID,Product Handle,Current Image ID,Collection Name,New Image URL\ngid://shopify/Product/1,tee,i1,Summer,https://cdn.example.com/new.png\n"), 0o600)
}
