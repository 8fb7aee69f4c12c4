package crypto

// XOR はデータの各バイトを指定されたキーで XOR します。
func XOR(data []byte, key byte) {
	for i := range data {
		data[i] ^= key
	}
}

// XORKey はデータを循環キーで XOR します。
// pos はデータ先頭のストリーム上の位置で、キーの添字は (pos+i) % len(key) になります。
func XORKey(data []byte, key []byte, pos int64) {
	if len(key) == 0 {
		return
	}
	k := int(pos % int64(len(key)))
	for i := range data {
		data[i] ^= key[k]
		k++
		if k == len(key) {
			k = 0
		}
	}
}
